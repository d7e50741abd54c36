package checkout

import (
	"context"
	"fmt"
	"sync"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
)

type SessionReader interface {
	CartID(ctx context.Context, deviceID string) (string, error)
	CustomerToken(ctx context.Context, deviceID string) (string, error)
}

// Manager keeps one machine per device session. The session tokens are read
// once when the machine mounts; an auth change drops the machine so the next
// request mounts against the merged cart.
type Manager struct {
	sessions SessionReader
	factory  func(deviceID string, session entities.CartSession) *Machine

	mu       sync.Mutex
	machines map[string]*Machine
}

func NewManager(sessions SessionReader, factory func(deviceID string, session entities.CartSession) *Machine) *Manager {
	return &Manager{
		sessions: sessions,
		factory:  factory,
		machines: make(map[string]*Machine),
	}
}

func (m *Manager) Machine(ctx context.Context, deviceID string) (*Machine, error) {
	m.mu.Lock()
	if machine, ok := m.machines[deviceID]; ok {
		m.mu.Unlock()
		return machine, nil
	}
	m.mu.Unlock()

	cartID, err := m.sessions.CartID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart id: %w", err)
	}
	token, err := m.sessions.CustomerToken(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to read customer token: %w", err)
	}

	session := entities.CartSession{
		CartID:        cartID,
		Authenticated: token != "",
		CustomerToken: token,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another request may have mounted the machine meanwhile.
	if machine, ok := m.machines[deviceID]; ok {
		return machine, nil
	}
	machine := m.factory(deviceID, session)
	m.machines[deviceID] = machine
	return machine, nil
}

func (m *Manager) Drop(deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.machines, deviceID)
}
