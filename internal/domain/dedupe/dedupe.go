// Package dedupe detects repeated account-statement pairs in fact input.
package dedupe

import (
	"context"
	"strconv"
	"sync"

	"github.com/okian/curvewatch/internal/domain/model"
)

// Deduper records seen statement IDs.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	SeenAndRecord(ctx context.Context, id string) bool

	Size() int64
}

// inMemoryDeduper keeps IDs in a map. When maxSize > 0 the oldest ID is
// evicted from a ring once the bound is reached.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	ring    []string
	next    int
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]struct{})
	if d.maxSize > 0 {
		d.ring = make([]string, 0, d.maxSize)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if d.maxSize > 0 {
		if len(d.ring) < d.maxSize {
			d.ring = append(d.ring, id)
		} else {
			delete(d.seen, d.ring[d.next])
			d.ring[d.next] = id
			d.next = (d.next + 1) % d.maxSize
		}
	}
	d.seen[id] = struct{}{}
	return false
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}

// StatementID identifies one account at one statement age.
func StatementID(accountID string, age int) string {
	return accountID + "#" + strconv.Itoa(age)
}

// Report summarises a scan.
type Report struct {
	Duplicates int
	// Examples holds up to exampleLimit duplicate IDs for logging.
	Examples []string
}

const exampleLimit = 5

// Scan counts facts whose account-statement pair was already seen. Facts are
// not removed; duplicates are a data-quality warning.
func Scan(ctx context.Context, facts []model.StatementFact, opts ...Option) Report {
	d := NewInMemoryDeduper(opts...)
	var rep Report
	for _, f := range facts {
		id := StatementID(f.AccountID, f.StatementAge)
		if d.SeenAndRecord(ctx, id) {
			rep.Duplicates++
			if len(rep.Examples) < exampleLimit {
				rep.Examples = append(rep.Examples, id)
			}
		}
	}
	return rep
}
