package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"casenotes/pkg/auth"
	"casenotes/pkg/cache"
	"casenotes/pkg/dashboard"
	"casenotes/pkg/mutation"
	"casenotes/pkg/referral"
	"casenotes/pkg/session"
	"casenotes/pkg/table"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// SnapshotCache is the read side the handlers need.
type SnapshotCache interface {
	Get(ctx context.Context) (cache.Snapshots, error)
	Invalidate()
}

type Server struct {
	cache     SnapshotCache
	mutator   session.Mutator
	referrals *referral.Service
	tracker   *session.Tracker
	users     *auth.Directory
	now       func() time.Time
}

func NewServer(c SnapshotCache, m session.Mutator, referrals *referral.Service, tracker *session.Tracker, users *auth.Directory) *Server {
	return &Server{
		cache:     c,
		mutator:   m,
		referrals: referrals,
		tracker:   tracker,
		users:     users,
		now:       time.Now,
	}
}

type ctxKey int

const (
	userKey ctxKey = iota
	schemaKey
)

func userFrom(r *http.Request) string {
	email, _ := r.Context().Value(userKey).(string)
	return email
}

func schemaFrom(r *http.Request) table.Schema {
	schema, _ := r.Context().Value(schemaKey).(table.Schema)
	return schema
}

// requireRole resolves {program} and checks basic auth credentials against
// the users holding that program role.
func (s *Server) requireRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		schema, ok := table.SchemaFor(chi.URLParam(r, "program"))
		if !ok {
			sendError(w, http.StatusNotFound, "unknown program")
			return
		}
		email, password, ok := r.BasicAuth()
		if ok {
			_, ok = s.users.Authenticate(email, password, schema.Program)
		}
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="casenotes"`)
			sendError(w, http.StatusUnauthorized, "Invalid credentials or role mismatch.")
			return
		}
		ctx := context.WithValue(r.Context(), userKey, email)
		ctx = context.WithValue(ctx, schemaKey, schema)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) postRefresh(w http.ResponseWriter, r *http.Request) {
	s.cache.Invalidate()
	log.Infof("Data refresh requested by %s", userFrom(r))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	snap, stale, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	sendJSON(w, http.StatusOK, summaryResponse{
		Summary: dashboard.Summarize(snap, s.now()),
		Stale:   stale,
	})
}

func (s *Server) getClients(w http.ResponseWriter, r *http.Request) {
	snap, stale, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	clients := snap.Entities()
	if clients == nil {
		clients = []string{}
	}
	sendJSON(w, http.StatusOK, clientsResponse{Program: snap.Schema.Program, Clients: clients, Stale: stale})
}

func (s *Server) getClient(w http.ResponseWriter, r *http.Request) {
	name, err := pathParam(r, "name")
	if err != nil {
		sendError(w, http.StatusBadRequest, "invalid client name")
		return
	}
	snap, stale, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	records := snap.Filter(snap.Schema.EntityColumn, name)
	if len(records) == 0 {
		sendError(w, http.StatusNotFound, fmt.Sprintf("No data found for %s", name))
		return
	}
	notes := snap.NotesFor(name)
	if notes == nil {
		notes = []table.Note{}
	}
	sendJSON(w, http.StatusOK, clientResponse{
		Program: snap.Schema.Program,
		Name:    name,
		Profile: profile(snap, records),
		Notes:   notes,
		Stale:   stale,
	})
}

func (s *Server) postNote(w http.ResponseWriter, r *http.Request) {
	name, err := pathParam(r, "name")
	if err != nil {
		sendError(w, http.StatusBadRequest, "invalid client name")
		return
	}
	var req noteRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, _, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	if err := s.referrals.AddNote(r.Context(), snap, name, date, req.Text); err != nil {
		writeError(w, err)
		return
	}
	sendJSON(w, http.StatusCreated, map[string]string{"status": "Note added successfully for " + name})
}

func (s *Server) postReferral(w http.ResponseWriter, r *http.Request) {
	var req referralRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := s.referrals.Submit(r.Context(), schemaFrom(r), req.Fields)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := referralResponse{Entity: out.Entity}
	for _, warn := range out.Warnings {
		resp.Warnings = append(resp.Warnings, warn.Error())
	}
	sendJSON(w, http.StatusCreated, resp)
}

func (s *Server) beginInteraction(kind session.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		row, err := strconv.Atoi(chi.URLParam(r, "row"))
		if err != nil {
			sendError(w, http.StatusBadRequest, "row must be a number")
			return
		}
		snap, _, ok := s.snapshot(w, r)
		if !ok {
			return
		}
		in, err := s.tracker.Begin(kind, snap, userFrom(r), row)
		if err != nil {
			writeError(w, err)
			return
		}
		sendJSON(w, http.StatusCreated, in)
	}
}

func (s *Server) getInteraction(w http.ResponseWriter, r *http.Request) {
	in, ok := s.interaction(w, r)
	if !ok {
		return
	}
	sendJSON(w, http.StatusOK, in)
}

func (s *Server) commitInteraction(w http.ResponseWriter, r *http.Request) {
	in, ok := s.interaction(w, r)
	if !ok {
		return
	}
	var req noteRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	in, err = s.tracker.Commit(r.Context(), in.ID, userFrom(r), session.Change{Date: date, Text: req.Text}, s.cache, s.mutator)
	if err != nil {
		writeError(w, err)
		return
	}
	verb := "updated"
	if in.Kind == session.Delete {
		verb = "deleted"
	}
	sendJSON(w, http.StatusOK, map[string]string{"status": fmt.Sprintf("Comment %s successfully for %s", verb, in.Entity)})
}

func (s *Server) cancelInteraction(w http.ResponseWriter, r *http.Request) {
	in, ok := s.interaction(w, r)
	if !ok {
		return
	}
	s.tracker.Cancel(in.ID, userFrom(r))
	w.WriteHeader(http.StatusNoContent)
}

// interaction loads {id} for the current user and program.
func (s *Server) interaction(w http.ResponseWriter, r *http.Request) (session.Interaction, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, http.StatusBadRequest, "invalid interaction id")
		return session.Interaction{}, false
	}
	in, ok := s.tracker.Get(id, userFrom(r))
	if !ok || in.Program != schemaFrom(r).Program {
		writeError(w, session.ErrNotFound)
		return session.Interaction{}, false
	}
	return in, true
}

// snapshot returns the program's current snapshot. stale is set when the
// store's quota was hit and older (or empty) data is being served.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (*table.Snapshot, bool, bool) {
	schema := schemaFrom(r)
	snaps, err := s.cache.Get(r.Context())
	if err != nil {
		var fe *cache.FetchError
		if errors.As(err, &fe) && fe.Kind == cache.QuotaExceeded {
			return snaps.For(schema), true, true
		}
		writeError(w, err)
		return nil, false, false
	}
	return snaps.For(schema), false, true
}

func statusFor(err error) int {
	var fe *cache.FetchError
	switch {
	case errors.Is(err, referral.ErrInvalid),
		errors.Is(err, session.ErrEmptyNote),
		errors.Is(err, mutation.ErrUnknownColumn):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, table.ErrRowUnresolved):
		return http.StatusConflict
	case errors.As(err, &fe) && fe.Kind == cache.QuotaExceeded:
		return http.StatusServiceUnavailable
	case errors.As(err, &fe), errors.Is(err, mutation.ErrRemoteWrite):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("Request failed: %v", err)
	}
	sendError(w, status, err.Error())
}

func sendError(w http.ResponseWriter, status int, msg string) {
	sendJSON(w, status, errorResponse{Error: msg})
}

func sendJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Errorf("Failed to encode response: %v", err)
		sendResponse(w, http.StatusInternalServerError, []byte(`{"error":"internal error"}`))
		return
	}
	sendResponse(w, status, body)
}

func sendResponse(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// decode reads an optional JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		sendError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// pathParam returns a decoded URL parameter. chi matches on the raw path only
// when the request carries one, and only then are its parameters still escaped.
func pathParam(r *http.Request, key string) (string, error) {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v, nil
	}
	return url.PathUnescape(v)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, ok := table.ParseDate(s).Date()
	if !ok {
		return time.Time{}, fmt.Errorf("%q is not a date", s)
	}
	return d, nil
}
