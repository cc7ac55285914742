package transport

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	lmserrors "github.com/jrsteele09/go-lms-client/internal/errors"
	"golang.org/x/crypto/blake2b"
)

// cacheEntry is the stored form of a response.
type cacheEntry struct {
	Status int         `json:"status"`
	Header http.Header `json:"header,omitempty"`
	Body   []byte      `json:"body"`
}

// Signature is the cache key of a call: a blake2b-256 digest of the method, path,
// canonical (sorted) query and body.
func Signature(method, path string, query url.Values, body []byte) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte(' ')
	b.WriteString(path)
	if len(query) > 0 {
		b.WriteByte('?')
		b.WriteString(query.Encode())
	}
	if len(body) > 0 {
		b.WriteByte('\n')
		b.Write(body)
	}
	sum := blake2b.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// lookup returns the cached response under key. Unreadable entries are removed and
// reported as a miss.
func (t *Transport) lookup(ctx context.Context, key string) (*Response, bool) {
	data, found, err := t.cache.Get(ctx, key)
	if err != nil {
		t.logger.Warn().Err(err).Msg("cache read failed, using network")
		return nil, false
	}
	if !found {
		return nil, false
	}

	entry, err := decodeEntry(data)
	if err != nil {
		t.logger.Debug().Err(err).Str("key", key).Msg("discarding cache entry")
		if err := t.cache.Remove(ctx, key); err != nil {
			t.logger.Warn().Err(err).Msg("removing corrupt cache entry")
		}
		return nil, false
	}
	return &Response{
		Status:    entry.Status,
		Header:    entry.Header,
		Body:      entry.Body,
		FromCache: true,
	}, true
}

func decodeEntry(data []byte) (cacheEntry, error) {
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return entry, lmserrors.Wrapf(lmserrors.ErrCorruptEntry, "[Transport lookup] %v", err)
	}
	if entry.Status == 0 {
		return entry, lmserrors.Wrapf(lmserrors.ErrCorruptEntry, "[Transport lookup] no status")
	}
	return entry, nil
}

func (t *Transport) storeAsync(ctx context.Context, key string, resp *Response, ttl time.Duration) {
	entry := cacheEntry{Status: resp.Status, Header: resp.Header.Clone(), Body: resp.Body}
	ctx = context.WithoutCancel(ctx)

	t.writes.Add(1)
	go func() {
		defer t.writes.Done()
		data, err := json.Marshal(entry)
		if err != nil {
			t.logger.Warn().Err(err).Msg("encoding cache entry")
			return
		}
		if err := t.cache.Set(ctx, key, data, ttl); err != nil {
			t.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}()
}
