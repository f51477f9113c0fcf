// Package store persists the pipeline's cross-run state: the harvested record
// list and the geocode cache. Each dataset is a single JSON document stored
// under a key in a pluggable Backend and is always written in full.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Backend is a durable key/value store for whole documents. Put must not
// return until the value is durably written.
type Backend interface {
	// Get returns the stored bytes for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)

	// Put overwrites the value for key.
	Put(ctx context.Context, key string, data []byte) error

	// Quarantine moves the value for key aside so it can be inspected later,
	// and returns the name it was moved to.
	Quarantine(ctx context.Context, key string) (string, error)

	// Close releases the backend's resources.
	Close() error
}

// ErrCorruptState is matched (via errors.Is) by errors returned when a stored
// document exists but cannot be decoded.
var ErrCorruptState = errors.New("store: corrupt persisted state")

// CorruptStateError reports an undecodable document.
type CorruptStateError struct {
	Key string
	Err error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("store: corrupt persisted state for %q: %v", e.Key, e.Err)
}

func (e *CorruptStateError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrCorruptState) true for any CorruptStateError.
func (e *CorruptStateError) Is(target error) bool { return target == ErrCorruptState }

// CorruptPolicy decides what LoadOrRecover does with an undecodable document.
type CorruptPolicy string

const (
	// CorruptBackup quarantines the document and continues with the default.
	CorruptBackup CorruptPolicy = "backup"
	// CorruptFail returns the ErrCorruptState error to the caller.
	CorruptFail CorruptPolicy = "fail"
)

// ParseCorruptPolicy converts a config string into a CorruptPolicy.
func ParseCorruptPolicy(s string) (CorruptPolicy, error) {
	switch CorruptPolicy(s) {
	case CorruptBackup, "":
		return CorruptBackup, nil
	case CorruptFail:
		return CorruptFail, nil
	default:
		return "", eris.Errorf("store: unknown corrupt policy %q (valid: backup, fail)", s)
	}
}

// Load decodes the document stored under key. A missing key yields def and a
// nil error; an undecodable document yields def and a *CorruptStateError.
func Load[T any](ctx context.Context, b Backend, key string, def T) (T, error) {
	data, ok, err := b.Get(ctx, key)
	if err != nil {
		return def, eris.Wrapf(err, "store: load %s", key)
	}
	if !ok {
		return def, nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return def, &CorruptStateError{Key: key, Err: err}
	}
	return v, nil
}

// LoadOrRecover is Load with a recovery policy for corrupt documents. Under
// CorruptBackup the corrupt value is quarantined, a warning is logged, and
// def is returned with a nil error.
func LoadOrRecover[T any](ctx context.Context, b Backend, key string, def T, policy CorruptPolicy) (T, error) {
	v, err := Load(ctx, b, key, def)
	if err == nil || !errors.Is(err, ErrCorruptState) || policy == CorruptFail {
		return v, err
	}

	movedTo, qerr := b.Quarantine(ctx, key)
	if qerr != nil {
		return def, eris.Wrapf(qerr, "store: quarantine corrupt %s", key)
	}
	zap.L().Warn("corrupt persisted state moved aside, starting from default",
		zap.String("key", key),
		zap.String("moved_to", movedTo),
		zap.Error(err),
	)
	return def, nil
}

// Save encodes v as indented JSON and overwrites the document under key.
func Save[T any](ctx context.Context, b Backend, key string, v T) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrapf(err, "store: encode %s", key)
	}
	if err := b.Put(ctx, key, buf.Bytes()); err != nil {
		return eris.Wrapf(err, "store: save %s", key)
	}
	return nil
}
