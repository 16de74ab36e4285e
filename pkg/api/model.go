package api

import (
	"casenotes/pkg/dashboard"
	"casenotes/pkg/table"
)

type summaryResponse struct {
	dashboard.Summary
	Stale bool `json:"stale"`
}

type clientsResponse struct {
	Program string   `json:"program"`
	Clients []string `json:"clients"`
	Stale   bool     `json:"stale"`
}

type clientResponse struct {
	Program string                 `json:"program"`
	Name    string                 `json:"name"`
	Profile map[string]table.Value `json:"profile"`
	Notes   []table.Note           `json:"notes"`
	Stale   bool                   `json:"stale"`
}

type referralRequest struct {
	Fields map[string]string `json:"fields"`
}

type referralResponse struct {
	Entity   string   `json:"entity"`
	Warnings []string `json:"warnings,omitempty"`
}

// noteRequest carries a note date (YYYY-MM-DD or MM/DD/YYYY) and text.
type noteRequest struct {
	Date string `json:"date"`
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// profile returns the main fields of a client, taken from its first row.
func profile(snap *table.Snapshot, records []table.Record) map[string]table.Value {
	out := make(map[string]table.Value)
	if len(records) == 0 {
		return out
	}
	for _, col := range snap.Schema.ProfileColumns {
		if snap.HasColumn(col) {
			out[col] = records[0].Get(col)
		}
	}
	return out
}
