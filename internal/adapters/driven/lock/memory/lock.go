// Package memory provides an in-process IngestionLock.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
)

// Ensure Lock implements the interface.
var _ driven.IngestionLock = (*Lock)(nil)

type marker struct {
	holder  string
	expires time.Time
}

// Lock marks documents in flight within one process. Markers expire after
// their TTL so a crashed job cannot block a document forever.
type Lock struct {
	mu      sync.Mutex
	markers map[string]marker
	now     func() time.Time
}

// New creates an empty lock.
func New() *Lock {
	return &Lock{markers: make(map[string]marker), now: time.Now}
}

// Acquire marks documentID for holder unless an unexpired marker exists.
func (l *Lock) Acquire(_ context.Context, documentID, holder string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if m, ok := l.markers[documentID]; ok && now.Before(m.expires) {
		return false, nil
	}
	l.markers[documentID] = marker{holder: holder, expires: now.Add(ttl)}
	return true, nil
}

// Release clears the marker if holder owns it.
func (l *Lock) Release(_ context.Context, documentID, holder string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.markers[documentID]; ok && m.holder == holder {
		delete(l.markers, documentID)
	}
	return nil
}
