package referral

import (
	"context"
	"errors"
	"testing"
	"time"

	"casenotes/pkg/auth"
	"casenotes/pkg/cache"
	"casenotes/pkg/config"
	"casenotes/pkg/mutation"
	"casenotes/pkg/notify"
	"casenotes/pkg/sheets"
	"casenotes/pkg/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2024, 9, 3, 15, 0, 0, 0, time.UTC)

type mockSender struct {
	SendCalls []notify.Message
	Fail      map[string]error
}

func (m *mockSender) Send(_ context.Context, msg notify.Message) error {
	m.SendCalls = append(m.SendCalls, msg)
	return m.Fail[msg.To]
}

func newService(store *sheets.MockStore, sender *mockSender) *Service {
	c := cache.New(store, cache.DefaultTTL)
	s := NewService(
		mutation.NewSequencer(store, c),
		notify.NewDispatcher(sender),
		map[string][]notify.Recipient{
			"GRIT": {{Email: "a@example.org", Name: "Ana"}, {Email: "b@example.org", Name: "Ben"}},
		},
		"https://dashboard.example.org",
		"help@example.org",
	)
	s.now = func() time.Time { return today }
	return s
}

func gritStore() *sheets.MockStore {
	return sheets.NewMockStore(map[string][][]string{
		"GRIT": {
			{"Youth Name", "Date", "Referring Agent", "Agency", "DOB/Age", "Day of Case Note", "Case Notes"},
			{"Alex", "01/15/2024", "Officer Lee", "PD", "15", "01/20/2024", "intake"},
		},
		"IPE": {
			{"Name of Client", "Type", "Date Received", "Referral Agent", "Consent Signed for GRIT/NVFS",
				"Case Manager", "Progress Reports Sent to Referring Agent/CM", "Day of Case Note", "Case Notes"},
		},
	})
}

func TestSubmitAppendsAndNotifies(t *testing.T) {
	store := gritStore()
	sender := &mockSender{}
	s := newService(store, sender)

	out, err := s.Submit(context.Background(), table.GRIT, map[string]string{
		"Youth Name":      "Sam",
		"Date":            "2024-09-01",
		"Referring Agent": "Ms. Park",
		"Agency":          "School",
		"Case Notes":      "intake call",
	})
	require.NoError(t, err)
	assert.Equal(t, "Sam", out.Entity)
	assert.Empty(t, out.Warnings)

	require.Len(t, store.AppendCalls, 1)
	assert.Equal(t, []string{"Sam", "09/01/2024", "Ms. Park", "School", "", "09/03/2024", "intake call"}, store.AppendCalls[0].Row)

	require.Len(t, sender.SendCalls, 2)
	msg := sender.SendCalls[0]
	assert.Equal(t, "New Referral Submitted to GRIT program: Sam", msg.Subject)
	assert.Contains(t, msg.Body, "Hi Ana,")
	assert.Contains(t, msg.Body, "Youth Name: Sam\n")
	assert.Contains(t, msg.Body, "Day of Case Note: 09/03/2024\n")
	assert.Contains(t, msg.Body, "https://dashboard.example.org")
	assert.Contains(t, msg.Body, "Contact help@example.org")
}

func TestNotificationFailureDoesNotAffectAppend(t *testing.T) {
	store := gritStore()
	sender := &mockSender{Fail: map[string]error{"a@example.org": errors.New("rejected")}}
	s := newService(store, sender)

	out, err := s.Submit(context.Background(), table.GRIT, map[string]string{
		"Youth Name": "Sam",
		"Case Notes": "intake",
	})
	require.NoError(t, err)
	assert.Len(t, store.AppendCalls, 1)
	require.Len(t, sender.SendCalls, 2)
	assert.Equal(t, "b@example.org", sender.SendCalls[1].To)
	require.Len(t, out.Warnings, 1)
	var se *notify.SendError
	assert.ErrorAs(t, out.Warnings[0], &se)
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name   string
		schema table.Schema
		fields map[string]string
	}{
		{"missing name", table.GRIT, map[string]string{"Case Notes": "x"}},
		{"blank notes", table.GRIT, map[string]string{"Youth Name": "Sam", "Case Notes": "  "}},
		{"unknown field", table.GRIT, map[string]string{"Youth Name": "Sam", "Case Notes": "x", "Shoe Size": "9"}},
		{"bad date", table.GRIT, map[string]string{"Youth Name": "Sam", "Case Notes": "x", "Date": "yesterday"}},
		{"bad ipe type", table.IPE, map[string]string{"Name of Client": "Jo", "Case Notes": "x", "Type": "Walk-in"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := gritStore()
			sender := &mockSender{}
			_, err := newService(store, sender).Submit(context.Background(), tt.schema, tt.fields)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Empty(t, store.AppendCalls)
			assert.Empty(t, sender.SendCalls)
		})
	}
}

func TestSubmitIPE(t *testing.T) {
	store := gritStore()
	sender := &mockSender{}
	_, err := newService(store, sender).Submit(context.Background(), table.IPE, map[string]string{
		"Name of Client": "Jo",
		"Type":           "VPIP",
		"Date Received":  "08/30/2024",
		"Case Manager":   "Robin",
		"Case Notes":     "received",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Jo", "VPIP", "08/30/2024", "", "", "Robin", "", "09/03/2024", "received"}, store.AppendCalls[0].Row)
	assert.Empty(t, sender.SendCalls, "no IPE coordinators configured")
}

func TestSubmitAppendFailureSkipsNotifications(t *testing.T) {
	store := gritStore()
	store.AppendErr = errors.New("unavailable")
	sender := &mockSender{}

	_, err := newService(store, sender).Submit(context.Background(), table.GRIT, map[string]string{
		"Youth Name": "Sam",
		"Case Notes": "intake",
	})
	assert.ErrorIs(t, err, mutation.ErrRemoteWrite)
	assert.Empty(t, sender.SendCalls)
}

func TestAddNote(t *testing.T) {
	store := gritStore()
	s := newService(store, &mockSender{})
	snap := table.NewSnapshot(table.GRIT, store.Sheets["GRIT"], today)

	err := s.AddNote(context.Background(), snap, "Alex", time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC), " check-in ")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alex", "", "", "", "", "09/02/2024", "check-in"}, store.AppendCalls[0].Row)

	assert.ErrorIs(t, s.AddNote(context.Background(), snap, "Nobody", today, "x"), ErrInvalid)
	assert.ErrorIs(t, s.AddNote(context.Background(), snap, "Alex", today, ""), ErrInvalid)
	assert.Len(t, store.AppendCalls, 1)
}

func TestCoordinators(t *testing.T) {
	dir := auth.NewDirectory(map[string]map[string]config.User{
		"a@example.org": {"GRIT": {Name: "Ana"}},
	})
	got := Coordinators(map[string][]string{
		"GRIT": {"a@example.org", "x@example.org"},
		"IPE":  {"a@example.org"},
	}, dir)
	assert.Equal(t, []notify.Recipient{{Email: "a@example.org", Name: "Ana"}, {Email: "x@example.org"}}, got["GRIT"])
	assert.Equal(t, []notify.Recipient{{Email: "a@example.org"}}, got["IPE"])
}
