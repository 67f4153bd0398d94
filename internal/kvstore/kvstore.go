package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Scope separates the storage areas the configuration surface knows about.
// Session values never outlive the process; the other scopes persist.
type Scope string

const (
	ScopeSession Scope = "session"
	ScopeLocal   Scope = "local"
	ScopeSynced  Scope = "synced"
	ScopeManaged Scope = "managed"
)

// ErrNotFound is returned when a key has no value in the given scope.
var ErrNotFound = errors.New("key not found")

// Store persists string values per scope and key. Aggregates go through
// SetJSON/GetJSON, which JSON-encode them before storage; the store itself
// only guarantees fidelity for plain strings.
type Store interface {
	Set(ctx context.Context, scope Scope, key, value string) error
	Get(ctx context.Context, scope Scope, key string) (string, error)
}

// SetJSON stores any JSON-encodable aggregate under the key.
func SetJSON(ctx context.Context, s Store, scope Scope, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for %s/%s: %w", scope, key, err)
	}
	return s.Set(ctx, scope, key, string(encoded))
}

// GetJSON loads and decodes an aggregate stored with SetJSON.
func GetJSON(ctx context.Context, s Store, scope Scope, key string, out any) error {
	encoded, err := s.Get(ctx, scope, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(encoded), out); err != nil {
		return fmt.Errorf("failed to decode value for %s/%s: %w", scope, key, err)
	}
	return nil
}
