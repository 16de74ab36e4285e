package api

import (
	"context"
	"sync"

	"casenotes/pkg/notify"
)

type mockSender struct {
	mu        sync.Mutex
	SendCalls []notify.Message
	Fail      map[string]error
}

func (m *mockSender) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendCalls = append(m.SendCalls, msg)
	return m.Fail[msg.To]
}
