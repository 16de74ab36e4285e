package sheets

import (
	"context"
	"sync"
)

// RangeCall records one range-addressed write against a MockStore.
type RangeCall struct {
	Sheet string
	Range string
	Row   []string
}

// AppendCall records one append against a MockStore.
type AppendCall struct {
	Sheet string
	Row   []string
}

// MockStore is an in-memory Store that records every call. Errors can be
// injected per operation.
type MockStore struct {
	mu sync.Mutex

	Sheets map[string][][]string

	ReadAllErr    error
	ReadHeaderErr error
	AppendErr     error
	UpdateErr     error
	ClearErr      error

	ReadAllCalls    int
	ReadHeaderCalls int
	AppendCalls     []AppendCall
	UpdateCalls     []RangeCall
	ClearCalls      []RangeCall
}

func NewMockStore(sheets map[string][][]string) *MockStore {
	if sheets == nil {
		sheets = map[string][][]string{}
	}
	return &MockStore{Sheets: sheets}
}

func (m *MockStore) ReadAll(_ context.Context, sheet string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadAllCalls++
	if m.ReadAllErr != nil {
		return nil, m.ReadAllErr
	}
	rows := m.Sheets[sheet]
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = make([]string, len(row))
		copy(out[i], row)
	}
	return out, nil
}

func (m *MockStore) ReadHeader(_ context.Context, sheet string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadHeaderCalls++
	if m.ReadHeaderErr != nil {
		return nil, m.ReadHeaderErr
	}
	rows := m.Sheets[sheet]
	if len(rows) == 0 {
		return nil, nil
	}
	return append([]string(nil), rows[0]...), nil
}

func (m *MockStore) AppendRow(_ context.Context, sheet string, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendCalls = append(m.AppendCalls, AppendCall{Sheet: sheet, Row: row})
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.Sheets[sheet] = append(m.Sheets[sheet], append([]string(nil), row...))
	return nil
}

func (m *MockStore) UpdateRange(_ context.Context, sheet, a1Range string, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls = append(m.UpdateCalls, RangeCall{Sheet: sheet, Range: a1Range, Row: row})
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	if idx := rangeRow(a1Range) - 1; idx >= 0 && idx < len(m.Sheets[sheet]) {
		m.Sheets[sheet][idx] = append([]string(nil), row...)
	}
	return nil
}

func (m *MockStore) ClearRange(_ context.Context, sheet, a1Range string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClearCalls = append(m.ClearCalls, RangeCall{Sheet: sheet, Range: a1Range})
	if m.ClearErr != nil {
		return m.ClearErr
	}
	if idx := rangeRow(a1Range) - 1; idx >= 0 && idx < len(m.Sheets[sheet]) {
		m.Sheets[sheet][idx] = []string{}
	}
	return nil
}

// rangeRow extracts the row number from a single-row range like "A5:Z5".
func rangeRow(a1Range string) int {
	row := 0
	for _, r := range a1Range {
		switch {
		case r >= '0' && r <= '9':
			row = row*10 + int(r-'0')
		case r == ':':
			return row
		}
	}
	return row
}
