package delivery

import (
	"context"
	"sync"

	"github.com/lazypower/newcomer/internal/content"
	"github.com/lazypower/newcomer/internal/member"
)

// Mock is a test double for the delivery collaborators. It records every
// call and returns the configured errors.
type Mock struct {
	DeliverErr  error
	AnnounceErr error
	NotifyErr   error

	// FailFor makes Deliver fail only for these member ids.
	FailFor map[string]bool

	mu        sync.Mutex
	Delivered []string
	Announced []string
	Notices   []Notice
	Messages  []content.Message
}

// Deliver records the call.
func (m *Mock) Deliver(_ context.Context, rec member.Record, msg content.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeliverErr != nil {
		return m.DeliverErr
	}
	if m.FailFor[rec.ID] {
		return ErrNotDelivered
	}
	m.Delivered = append(m.Delivered, rec.ID)
	m.Messages = append(m.Messages, msg)
	return nil
}

// Announce records the call.
func (m *Mock) Announce(_ context.Context, rec member.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Announced = append(m.Announced, rec.ID)
	return m.AnnounceErr
}

// NotifyStaff records the call.
func (m *Mock) NotifyStaff(_ context.Context, n Notice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notices = append(m.Notices, n)
	return m.NotifyErr
}

// DeliveredIDs returns a copy of the delivered member ids.
func (m *Mock) DeliveredIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Delivered...)
}

// NoticeKinds returns the kinds of every recorded notice, in order.
func (m *Mock) NoticeKinds() []NoticeKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]NoticeKind, len(m.Notices))
	for i, n := range m.Notices {
		out[i] = n.Kind
	}
	return out
}
