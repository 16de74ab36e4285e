package table

import (
	"sort"
	"strings"
)

const noteLabelLength = 50

// Note is one case note of a client, tagged with the row it lives on.
type Note struct {
	Row   int    `json:"row"`
	Date  Value  `json:"date"`
	Text  string `json:"text"`
	Label string `json:"label"`
}

// Filter returns the records whose col holds value. Records keep their rows.
func (s *Snapshot) Filter(col, value string) []Record {
	var out []Record
	for _, r := range s.Records {
		if r.Get(col).String() == value {
			out = append(out, r)
		}
	}
	return out
}

// Entities lists the distinct non-blank client names, sorted.
func (s *Snapshot) Entities() []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range s.Records {
		name := r.Get(s.Schema.EntityColumn).Text()
		if strings.TrimSpace(name) == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NotesFor returns the case notes of one client, oldest first with undated
// notes last.
func (s *Snapshot) NotesFor(entity string) []Note {
	var notes []Note
	for _, r := range s.Filter(s.Schema.EntityColumn, entity) {
		date := r.Get(ColumnNoteDate)
		text := r.Get(ColumnCaseNotes).Text()
		if date.IsEmpty() && text == "" {
			continue
		}
		notes = append(notes, Note{Row: r.Row(), Date: date, Text: text, Label: noteLabel(date, text)})
	}
	sort.SliceStable(notes, func(i, j int) bool {
		di, iok := notes[i].Date.Date()
		dj, jok := notes[j].Date.Date()
		if iok != jok {
			return iok
		}
		return iok && di.Before(dj)
	})
	return notes
}

func noteLabel(date Value, text string) string {
	prefix := "No date"
	if _, ok := date.Date(); ok {
		prefix = date.Display()
	}
	runes := []rune(text)
	if len(runes) > noteLabelLength {
		text = string(runes[:noteLabelLength]) + "..."
	}
	return prefix + ": " + text
}
