package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/slipstream/slip/internal/lock"
	"github.com/slipstream/slip/internal/util"
)

// BindingLockTimeout bounds the wait for the bindings lock.
const BindingLockTimeout = 2 * time.Second

// ErrBindingsLocked means another process held the bindings lock for longer
// than BindingLockTimeout.
var ErrBindingsLocked = errors.New("session bindings are locked by another process")

// Binding maps a terminal key to the session it last used.
type Binding struct {
	SessionID string    `json:"sessionId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LoadBindings returns every recorded binding. Missing or corrupt files yield
// an empty map.
func (s *Store) LoadBindings() map[string]Binding {
	bindings := make(map[string]Binding)
	data, err := os.ReadFile(s.paths.SessionsFile())
	if err != nil {
		return bindings
	}
	if err := json.Unmarshal(data, &bindings); err != nil || bindings == nil {
		return make(map[string]Binding)
	}
	return bindings
}

// Binding returns the binding for key, if any.
func (s *Store) Binding(key string) (Binding, bool) {
	b, ok := s.LoadBindings()[key]
	return b, ok
}

// TouchBinding records that key used sessionID now. The read-modify-write is
// serialized across processes with a file lock, waiting at most
// BindingLockTimeout for it.
func (s *Store) TouchBinding(key, sessionID string) error {
	if err := s.paths.Ensure(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), BindingLockTimeout)
	defer cancel()

	unlock, ok, err := lock.FlockAcquireContext(ctx, s.paths.SessionsLockFile())
	if err != nil {
		return fmt.Errorf("locking session bindings: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w after %v", ErrBindingsLocked, BindingLockTimeout)
	}
	defer unlock()

	bindings := s.LoadBindings()
	bindings[key] = Binding{SessionID: sessionID, UpdatedAt: time.Now().UTC()}
	if err := util.AtomicWriteJSON(s.paths.SessionsFile(), bindings); err != nil {
		return fmt.Errorf("saving session bindings: %w", err)
	}
	return nil
}
