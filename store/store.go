// CLAUDE:SUMMARY Per-URL annotation persistence: key/value collection store with memory and SQLite backends.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hazyhaar/annot/annotation"
)

var (
	// ErrSentinelURL rejects URLs that collide with prototype-chain
	// property names. Payloads carrying these as document keys are
	// malicious or corrupt, never legitimate.
	ErrSentinelURL = errors.New("store: sentinel URL rejected")

	ErrEmptyURL = errors.New("store: empty URL")
)

var sentinelURLs = map[string]struct{}{
	"__proto__":   {},
	"constructor": {},
	"prototype":   {},
}

// ValidateURL guards every store entry point.
func ValidateURL(url string) error {
	if url == "" {
		return ErrEmptyURL
	}
	if _, bad := sentinelURLs[url]; bad {
		return fmt.Errorf("store: url %q: %w", url, ErrSentinelURL)
	}
	return nil
}

// Key derives the storage key for one collection of a document.
// Highlights and comments share the collection under the bare URL;
// the other kinds get a suffix. This layout is the wire format
// existing documents already use, so it is load-bearing.
func Key(url string, kind annotation.Kind) (string, error) {
	if err := ValidateURL(url); err != nil {
		return "", err
	}
	switch kind {
	case annotation.KindHighlight, annotation.KindComment:
		return url, nil
	case annotation.KindText:
		return url + "__texts", nil
	case annotation.KindDrawing:
		return url + "__drawings", nil
	default:
		return "", fmt.Errorf("store: key for %q: %w", kind, annotation.ErrUnknownKind)
	}
}

// Store persists annotation collections per document URL. A missing
// collection lists as empty, not as an error.
//
// List and Replace are the only primitives: a mutation is a
// read-modify-write of the whole collection, matching how the
// documents are stored. See Upsert for what that implies about
// concurrent writers.
type Store interface {
	List(ctx context.Context, url string, kind annotation.Kind) ([]annotation.Record, error)
	Replace(ctx context.Context, url string, kind annotation.Kind, recs []annotation.Record) error

	// Clear removes all three collections of a document.
	Clear(ctx context.Context, url string) error

	Close() error
}

// Upsert inserts rec into its collection, replacing any record with
// the same ID.
//
// The List/Replace pair is not atomic: two concurrent Upserts can
// interleave and the second Replace wins, losing the first writer's
// record. Single-writer callers are fine; anything else must
// serialize above the store. Hiding the window here would only move
// the surprise elsewhere.
func Upsert(ctx context.Context, s Store, url string, rec annotation.Record) error {
	kind := rec.RecordKind()
	recs, err := s.List(ctx, url, kind)
	if err != nil {
		return fmt.Errorf("store: upsert: %w", err)
	}
	replaced := false
	for i, r := range recs {
		if r.RecordID() == rec.RecordID() {
			recs[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		recs = append(recs, rec)
	}
	if err := s.Replace(ctx, url, kind, recs); err != nil {
		return fmt.Errorf("store: upsert: %w", err)
	}
	return nil
}

// Delete removes the record with the given ID from its collection.
// Deleting an absent ID is a no-op. Same read-modify-write caveat as
// Upsert.
func Delete(ctx context.Context, s Store, url string, kind annotation.Kind, id string) error {
	recs, err := s.List(ctx, url, kind)
	if err != nil {
		return fmt.Errorf("store: delete: %w", err)
	}
	out := recs[:0]
	for _, r := range recs {
		if r.RecordID() != id {
			out = append(out, r)
		}
	}
	if err := s.Replace(ctx, url, kind, out); err != nil {
		return fmt.Errorf("store: delete: %w", err)
	}
	return nil
}

// Get finds one record by ID.
func Get(ctx context.Context, s Store, url string, kind annotation.Kind, id string) (annotation.Record, error) {
	recs, err := s.List(ctx, url, kind)
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		if r.RecordID() == id {
			return r, nil
		}
	}
	return nil, nil
}

func encodeCollection(recs []annotation.Record) ([]byte, error) {
	if recs == nil {
		recs = []annotation.Record{}
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("store: encode collection: %w", err)
	}
	return data, nil
}

func decodeCollection(data []byte) ([]annotation.Record, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("store: decode collection: %w", err)
	}
	recs := make([]annotation.Record, 0, len(raws))
	for _, raw := range raws {
		rec, err := annotation.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("store: decode collection: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
