package table

import (
	"encoding/json"
	"strings"
	"time"
)

// WireDateFormat is the date text written to and read from the sheets.
const WireDateFormat = "01/02/2006"

// DisplayDateFormat is used for labels and JSON.
const DisplayDateFormat = "2006-01-02"

var readDateFormats = []string{
	"1/2/2006",
	"2006-01-02",
	"1/2/2006 15:04:05",
	"2006-01-02 15:04:05",
}

type Kind int

const (
	Empty Kind = iota
	Text
	Date
)

// Value is one cell. String is the only conversion back to sheet text.
type Value struct {
	kind Kind
	text string
	date time.Time
}

func TextValue(s string) Value {
	if s == "" {
		return Value{}
	}
	return Value{kind: Text, text: s}
}

func DateValue(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: Date, date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate reads cell text as a date. Anything unparsable is Empty.
func ParseDate(s string) Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return Value{}
	}
	for _, layout := range readDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return DateValue(t)
		}
	}
	return Value{}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsEmpty() bool { return v.kind == Empty }

// Text returns the raw text of a Text value and "" otherwise.
func (v Value) Text() string {
	if v.kind == Text {
		return v.text
	}
	return ""
}

func (v Value) Date() (time.Time, bool) {
	return v.date, v.kind == Date
}

// String serializes the value for the sheet.
func (v Value) String() string {
	switch v.kind {
	case Text:
		return v.text
	case Date:
		return v.date.Format(WireDateFormat)
	default:
		return ""
	}
}

// Display renders dates as YYYY-MM-DD and everything else as sheet text.
func (v Value) Display() string {
	if v.kind == Date {
		return v.date.Format(DisplayDateFormat)
	}
	return v.String()
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == Empty {
		return []byte("null"), nil
	}
	return json.Marshal(v.Display())
}
