package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

var (
	runLower = []byte("run/")
	runUpper = []byte("run0")
)

func indexKey(runID string) []byte { return []byte("id/" + runID) }

// PebbleStore implements Store using PebbleDB. Each entry is stored under its
// chronological key plus an id/<run-id> index pointing at it.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	opts := &pebble.Options{
		MemTableSize:          16 << 20,
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 8,
	}
	d, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: d}, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func (p *PebbleStore) Put(e Entry) error {
	if e.RunID == "" {
		return fmt.Errorf("put: empty run id")
	}
	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	key := []byte(e.Key())
	wb := p.db.NewBatch()
	defer wb.Close()
	if err := wb.Set(key, val, nil); err != nil {
		return err
	}
	if err := wb.Set(indexKey(e.RunID), key, nil); err != nil {
		return err
	}
	if err := wb.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (p *PebbleStore) get(key []byte) ([]byte, error) {
	v, closer, err := p.db.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

func (p *PebbleStore) Get(runID string) (Entry, bool) {
	key, err := p.get(indexKey(runID))
	if err != nil {
		return Entry{}, false
	}
	v, err := p.get(key)
	if err != nil {
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(v, &e); err != nil {
		return Entry{}, false
	}
	return e, true
}

func (p *PebbleStore) Range(fn func(e Entry) error) error {
	it, err := p.db.NewIter(&pebble.IterOptions{LowerBound: runLower, UpperBound: runUpper})
	if err != nil {
		return fmt.Errorf("iter: %w", err)
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		var e Entry
		if err := json.Unmarshal(it.Value(), &e); err != nil {
			return fmt.Errorf("decode %s: %w", it.Key(), err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return it.Error()
}

func (p *PebbleStore) Latest() (Entry, bool) {
	it, err := p.db.NewIter(&pebble.IterOptions{LowerBound: runLower, UpperBound: runUpper})
	if err != nil {
		return Entry{}, false
	}
	defer it.Close()
	if !it.Last() {
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(it.Value(), &e); err != nil {
		return Entry{}, false
	}
	return e, true
}

// Has reports whether runID is archived.
func (p *PebbleStore) Has(runID string) (bool, error) {
	_, err := p.get(indexKey(runID))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
