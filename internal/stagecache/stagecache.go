// Package stagecache holds the derived, deletable state SPEC_FULL.md §3
// introduces to resolve spec.md §9 design note #7: the blob OID a path had
// *at stage time*, and a memo of each commit's ancestor set. The object store
// and refs remain authoritative for commits and branches; the ancestor memo
// is recomputable, while the staged OIDs are the only record of stage-time
// content, so without them status cannot detect a change made after add.
// Grounded on the teacher's generic
// internal/storage/badger_store.go entity-store idiom (prefix-keyed values
// in an embedded github.com/dgraph-io/badger/v4 database), repurposed here
// from HTTP-entity CRUD to a small, internal key-value cache.
package stagecache

import (
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const (
	stagedPrefix    = "staged:"
	ancestorsPrefix = "anc:"
)

// Cache wraps an embedded badger database used purely as a cache.
type Cache struct {
	db *badger.DB
}

// Open opens (creating if absent) the cache database rooted at dir.
func Open(dir string) (*Cache, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// SetStagedOID records the OID a path was staged with.
func (c *Cache) SetStagedOID(path, oid string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(stagedPrefix+path), []byte(oid))
	})
}

// StagedOID returns the OID recorded for path at stage time, if any.
func (c *Cache) StagedOID(path string) (string, bool) {
	var oid string
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(stagedPrefix + path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			oid = string(val)
			return nil
		})
	})
	return oid, err == nil
}

// ClearStaged drops every staged-OID entry, mirroring the index reset that
// follows a successful commit.
func (c *Cache) ClearStaged() error {
	return c.clearPrefix(stagedPrefix)
}

// RemoveStagedOID drops the single entry for path (an explicit ungate, if
// ever added as future work per spec.md §9 design note #6).
func (c *Cache) RemoveStagedOID(path string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(stagedPrefix + path))
	})
}

// AncestorsMemo returns a memoized ancestors(oid) set, if one was stored.
// Safe to treat as permanently valid because commits are immutable: an
// OID's ancestor set never changes once computed.
func (c *Cache) AncestorsMemo(oid string) ([]string, bool) {
	var set []string
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(ancestorsPrefix + oid))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) > 0 {
				set = strings.Split(string(val), "\n")
			}
			return nil
		})
	})
	return set, err == nil
}

// SetAncestorsMemo stores the ancestors(oid) set for later reuse.
func (c *Cache) SetAncestorsMemo(oid string, set []string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(ancestorsPrefix+oid), []byte(strings.Join(set, "\n")))
	})
}

func (c *Cache) clearPrefix(prefix string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		var keys [][]byte
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			keys = append(keys, append([]byte(nil), it.Item().Key()...))
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
