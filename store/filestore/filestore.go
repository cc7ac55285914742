// Package filestore keeps one namespace of the durable store in a JSON file so a
// session survives between CLI invocations.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jrsteele09/go-lms-client/store"
	"github.com/pkg/errors"
)

var _ store.Store = (*FileStore)(nil)

type record struct {
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
}

// FileStore is a Store persisted to a single file. The whole file is rewritten on
// every mutation, which suits the handful of keys a client session keeps.
type FileStore struct {
	path    string
	nowFunc func() time.Time
	mu      sync.Mutex
}

type Option func(*FileStore)

func WithNowFunc(now func() time.Time) Option {
	return func(f *FileStore) {
		f.nowFunc = now
	}
}

// New returns a FileStore for dir/namespace.json, creating dir when needed.
func New(dir, namespace string, options ...Option) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("[filestore New] creating %s: %w", dir, err)
	}
	f := &FileStore{
		path:    filepath.Join(dir, namespace+".json"),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(f)
	}
	return f, nil
}

func (f *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return nil, false, err
	}
	r, ok := records[key]
	if !ok {
		return nil, false, nil
	}
	if f.expired(r) {
		delete(records, key)
		return nil, false, f.save(records)
	}
	return r.Value, true, nil
}

func (f *FileStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return err
	}
	r := record{Value: value}
	if ttl > 0 {
		r.ExpiresAt = f.nowFunc().Add(ttl)
	}
	records[key] = r
	f.prune(records)
	return f.save(records)
}

func (f *FileStore) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := records[key]; !ok {
		return nil
	}
	delete(records, key)
	return f.save(records)
}

func (f *FileStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("[FileStore Clear] %w", err)
	}
	return nil
}

// load reads the file. A missing file is an empty store; an unreadable one is
// discarded, since everything in it can be recreated by logging in again.
func (f *FileStore) load() (map[string]record, error) {
	records := make(map[string]record)
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return records, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[FileStore load] %w", err)
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return make(map[string]record), nil
	}
	return records, nil
}

func (f *FileStore) save(records map[string]record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return errors.WithStack(err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("[FileStore save] %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("[FileStore save] %w", err)
	}
	return nil
}

func (f *FileStore) prune(records map[string]record) {
	for k, r := range records {
		if f.expired(r) {
			delete(records, k)
		}
	}
}

func (f *FileStore) expired(r record) bool {
	return !r.ExpiresAt.IsZero() && !f.nowFunc().Before(r.ExpiresAt)
}
