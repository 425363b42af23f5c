package cartstore

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// LocalCartStore keeps records in process memory. It does not survive a
// restart and is meant for development and tests.
type LocalCartStore struct {
	mu    sync.RWMutex
	store map[string][]byte

	log logrus.FieldLogger
}

// NewLocalCartStore constructor
func NewLocalCartStore(log logrus.FieldLogger) *LocalCartStore {
	return &LocalCartStore{
		store: make(map[string][]byte),
		log:   log.WithField("component", "cartstore.local"),
	}
}

// Initialize does nothing in this implementation.
func (l *LocalCartStore) Initialize(ctx context.Context) error {
	l.log.Info("LocalCartStore initialized")
	return nil
}

// Get returns a copy of the stored value.
func (l *LocalCartStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	value, ok := l.store[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

// Set stores a copy of value.
func (l *LocalCartStore) Set(ctx context.Context, key string, value []byte) error {
	l.log.WithFields(logrus.Fields{"key": key, "bytes": len(value)}).Debug("LocalCartStore: Set")
	l.mu.Lock()
	defer l.mu.Unlock()

	l.store[key] = append([]byte(nil), value...)
	return nil
}

// Ping is a health check that always returns true.
func (l *LocalCartStore) Ping(ctx context.Context) bool {
	return true
}
