package storage

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type MemoryBackend struct {
	mu       sync.RWMutex
	accounts map[common.Address][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{accounts: make(map[common.Address][]byte)}
}

func (m *MemoryBackend) Insert(_ context.Context, addr common.Address, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[addr]; exists {
		return ErrAccountExists
	}
	m.accounts[addr] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryBackend) Get(_ context.Context, addr common.Address) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.accounts[addr]
	if !exists {
		return nil, ErrAccountNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryBackend) Put(_ context.Context, addr common.Address, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[addr]; !exists {
		return ErrAccountNotFound
	}
	m.accounts[addr] = append([]byte(nil), data...)
	return nil
}
