package store

import (
	"context"
	"slices"
	"sync"

	"github.com/effective-security/reagent/chatmodel"
	"github.com/effective-security/reagent/pkg/llms"
)

type inMemory struct {
	mu      sync.RWMutex
	storage map[string][]llms.Message
}

// NewMemoryStore returns a process-local message store.
func NewMemoryStore() MessageStore {
	return &inMemory{}
}

func (m *inMemory) Messages(ctx context.Context) ([]llms.Message, error) {
	chatID := chatmodel.GetChatID(ctx)
	if chatID == "" {
		return nil, ErrNoChatID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.storage == nil {
		return nil, nil
	}
	return slices.Clone(m.storage[chatID]), nil
}

func (m *inMemory) Add(ctx context.Context, msgs ...llms.Message) error {
	chatID := chatmodel.GetChatID(ctx)
	if chatID == "" {
		return ErrNoChatID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storage == nil {
		// create on first use
		m.storage = make(map[string][]llms.Message)
	}
	m.storage[chatID] = append(m.storage[chatID], msgs...)
	return nil
}

func (m *inMemory) Reset(ctx context.Context) error {
	chatID := chatmodel.GetChatID(ctx)
	if chatID == "" {
		return ErrNoChatID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storage != nil {
		delete(m.storage, chatID)
	}
	return nil
}
