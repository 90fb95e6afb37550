package state

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend keeps the document in process, for tests and dry runs.
type MemoryBackend struct {
	mu  sync.Mutex
	doc []byte
	// PutErr, when set, fails every Put.
	PutErr error
	// GetErr, when set, fails every Get.
	GetErr error
	puts   int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Get(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if m.doc == nil {
		return nil, nil
	}
	return append([]byte(nil), m.doc...), nil
}

func (m *MemoryBackend) Put(ctx context.Context, document []byte, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.PutErr != nil {
		return m.PutErr
	}
	m.doc = append([]byte(nil), document...)
	return nil
}

// Puts counts every Put call, failed ones included.
func (m *MemoryBackend) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

func (m *MemoryBackend) SetPutErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutErr = err
}

func (m *MemoryBackend) Close() error {
	return nil
}
