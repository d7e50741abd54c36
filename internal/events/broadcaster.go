package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindCartChanged Kind = "cart-changed"
	KindAuthChanged Kind = "auth-changed"
)

// Event is a session-wide signal, e.g. "the cart emptied". Consumers use it
// for best-effort cross-view consistency; it is not a lock.
type Event struct {
	ID       string    `json:"id"`
	Kind     Kind      `json:"kind"`
	DeviceID string    `json:"device_id"`
	At       time.Time `json:"at"`
}

func New(kind Kind, deviceID string) Event {
	return Event{
		ID:       uuid.NewString(),
		Kind:     kind,
		DeviceID: deviceID,
		At:       time.Now().UTC(),
	}
}

// Broadcaster is injected into components that emit signals, replacing
// ambient window-level events with an explicit channel.
type Broadcaster interface {
	Publish(ctx context.Context, e Event) error
}

// Memory fans events out to in-process subscribers. Used in tests and as a
// local fallback when no broker is configured.
type Memory struct {
	mu   sync.RWMutex
	subs []func(Event)
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Subscribe(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

func (m *Memory) Publish(_ context.Context, e Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, fn := range m.subs {
		fn(e)
	}
	return nil
}
