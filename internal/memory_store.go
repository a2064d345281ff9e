package internal

import (
	"context"
	"sync"

	"github.com/goccy/go-json"
	"github.com/lychee-technology/apischema"
)

// MemorySchemaStore keeps encoded documents in memory. Callers never share
// data with the store: values are copied on the way in and out.
type MemorySchemaStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemorySchemaStore() *MemorySchemaStore {
	return &MemorySchemaStore{docs: make(map[string][]byte)}
}

func (s *MemorySchemaStore) SaveSchema(ctx context.Context, id string, data *apischema.ApiData) error {
	if data == nil {
		return apischema.NewValidationError("data", "api data is required")
	}
	if _, err := parseApiID(id); err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return apischema.NewStorageError("encode api data", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id] = payload
	return nil
}

func (s *MemorySchemaStore) GetSchema(ctx context.Context, id string) (*apischema.ApiData, error) {
	s.mu.RLock()
	payload, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, apischema.NewApiNotFoundError(id)
	}

	var data apischema.ApiData
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, apischema.NewStorageError("decode api data", err)
	}
	return &data, nil
}

// Len returns the number of stored documents.
func (s *MemorySchemaStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
