package referral

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"casenotes/pkg/notify"
	"casenotes/pkg/table"

	log "github.com/sirupsen/logrus"
)

// ErrInvalid wraps every validation failure of a submission.
var ErrInvalid = errors.New("invalid submission")

type Appender interface {
	Append(ctx context.Context, schema table.Schema, fields map[string]table.Value) error
}

type Notifier interface {
	Dispatch(ctx context.Context, recipients []notify.Recipient, subject string, body func(notify.Recipient) string) []error
}

// Outcome reports a committed referral. Warnings are notification failures;
// they never undo the referral.
type Outcome struct {
	Entity   string
	Warnings []error
}

type Service struct {
	appender     Appender
	notifier     Notifier
	coordinators map[string][]notify.Recipient
	dashboardURL string
	contact      string
	now          func() time.Time
}

func NewService(appender Appender, notifier Notifier, coordinators map[string][]notify.Recipient, dashboardURL, contact string) *Service {
	return &Service{
		appender:     appender,
		notifier:     notifier,
		coordinators: coordinators,
		dashboardURL: dashboardURL,
		contact:      contact,
		now:          time.Now,
	}
}

// Submit validates and appends a new referral, then notifies the program's
// coordinators. fields are keyed by sheet column; dates may be MM/DD/YYYY or
// YYYY-MM-DD and default to today.
func (s *Service) Submit(ctx context.Context, schema table.Schema, fields map[string]string) (Outcome, error) {
	values, err := s.buildReferral(schema, fields)
	if err != nil {
		return Outcome{}, err
	}
	if err := s.appender.Append(ctx, schema, values); err != nil {
		return Outcome{}, err
	}
	entity := values[schema.EntityColumn].String()
	log.Infof("New %s referral for %s", schema.Program, entity)

	subject := fmt.Sprintf("New Referral Submitted to %s program: %s", schema.Program, entity)
	warnings := s.notifier.Dispatch(ctx, s.coordinators[schema.Program], subject, func(r notify.Recipient) string {
		return s.referralBody(schema, values, r)
	})
	return Outcome{Entity: entity, Warnings: warnings}, nil
}

// AddNote appends a case note for a client already present in snap.
func (s *Service) AddNote(ctx context.Context, snap *table.Snapshot, entity string, date time.Time, text string) error {
	schema := snap.Schema
	entity = strings.TrimSpace(entity)
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: please enter a note before adding", ErrInvalid)
	}
	if entity == "" || len(snap.Filter(schema.EntityColumn, entity)) == 0 {
		return fmt.Errorf("%w: no %s named %q", ErrInvalid, strings.ToLower(schema.EntityColumn), entity)
	}
	if date.IsZero() {
		date = s.now()
	}
	return s.appender.Append(ctx, schema, map[string]table.Value{
		schema.EntityColumn:   table.TextValue(entity),
		table.ColumnNoteDate:  table.DateValue(date),
		table.ColumnCaseNotes: table.TextValue(text),
	})
}

func (s *Service) buildReferral(schema table.Schema, fields map[string]string) (map[string]table.Value, error) {
	allowed := make(map[string]bool, len(schema.ReferralColumns))
	for _, col := range schema.ReferralColumns {
		allowed[col] = true
	}
	for col := range fields {
		if !allowed[col] {
			return nil, fmt.Errorf("%w: unknown field %q", ErrInvalid, col)
		}
	}

	if strings.TrimSpace(fields[schema.EntityColumn]) == "" || strings.TrimSpace(fields[table.ColumnCaseNotes]) == "" {
		return nil, fmt.Errorf("%w: please fill in %s and %s", ErrInvalid, schema.EntityColumn, table.ColumnCaseNotes)
	}
	if !schema.AllowsReferralType(fields["Type"]) {
		return nil, fmt.Errorf("%w: type must be one of %s", ErrInvalid, strings.Join(schema.ReferralTypes, ", "))
	}

	values := make(map[string]table.Value, len(schema.ReferralColumns))
	for _, col := range schema.ReferralColumns {
		raw := strings.TrimSpace(fields[col])
		if !schema.IsDateColumn(col) {
			values[col] = table.TextValue(raw)
			continue
		}
		if raw == "" {
			values[col] = table.DateValue(s.now())
			continue
		}
		v := table.ParseDate(raw)
		if v.IsEmpty() {
			return nil, fmt.Errorf("%w: %s %q is not a date", ErrInvalid, col, raw)
		}
		values[col] = v
	}
	return values, nil
}

func (s *Service) referralBody(schema table.Schema, values map[string]table.Value, r notify.Recipient) string {
	name := r.Name
	if name == "" {
		name, _, _ = strings.Cut(r.Email, "@")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "A new referral has been submitted to %s program:\n\n", schema.Program)
	for _, col := range schema.ReferralColumns {
		fmt.Fprintf(&b, "%s: %s\n", col, values[col].String())
	}
	if s.dashboardURL != "" {
		fmt.Fprintf(&b, "\nPlease review via the PWC %s Dashboard: %s.\n", schema.Program, s.dashboardURL)
	}
	if s.contact != "" {
		fmt.Fprintf(&b, "Contact %s for questions.\n", s.contact)
	}
	b.WriteString("\nBest,\nPWC GRIT Dashboard\n")
	return b.String()
}
