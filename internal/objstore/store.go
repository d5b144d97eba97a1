package objstore

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"minigit/internal/vcserr"
	"minigit/internal/vfs"
)

// Store is the object store (C1): a flat directory of files named by OID,
// fronted by a bounded in-process LRU so a single command invocation that
// re-reads the same blob or commit many times (history walks, merge,
// status) does not re-hit disk every time. Grounded on the teacher's
// internal/content/store.go FileStore, generalized to two object kinds and
// rewritten against the vfs.FS capability interface per spec.md §9's
// re-architecture guidance.
type Store struct {
	fs  vfs.FS
	dir string

	blobCache   *lru.Cache[string, []byte]
	commitCache *lru.Cache[string, *Commit]
}

// New opens the object store rooted at dir, creating it if absent.
func New(fs vfs.FS, dir string, cacheSize int) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	blobCache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		return nil, err
	}
	commitCache, err := lru.New[string, *Commit](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{fs: fs, dir: dir, blobCache: blobCache, commitCache: commitCache}, nil
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashForStatus derives the same digest PutBlob would assign to content,
// without writing it, so status (C9) can compare a working file's current
// hash against the OID recorded at stage time.
func HashForStatus(content []byte) string {
	return hashBytes(content)
}

func (s *Store) path(oid string) string {
	return filepath.Join(s.dir, oid)
}

// Exists reports whether an OID is present in the store.
func (s *Store) Exists(oid string) bool {
	if oid == "" {
		return false
	}
	if _, ok := s.blobCache.Get(oid); ok {
		return true
	}
	if _, ok := s.commitCache.Get(oid); ok {
		return true
	}
	return s.fs.Exists(s.path(oid))
}

// PutBlob writes content keyed by the sha256 of its raw bytes. Writing the
// same OID twice is a no-op, satisfying §4.1's idempotence requirement.
func (s *Store) PutBlob(content []byte) (string, error) {
	oid := hashBytes(content)
	if !s.fs.Exists(s.path(oid)) {
		if err := s.fs.WriteFile(s.path(oid), content, 0o644); err != nil {
			return "", err
		}
	}
	s.blobCache.Add(oid, content)
	return oid, nil
}

// GetBlob reads the raw bytes for oid, failing object-missing if absent.
func (s *Store) GetBlob(oid string) ([]byte, error) {
	if content, ok := s.blobCache.Get(oid); ok {
		return content, nil
	}
	content, err := s.fs.ReadFile(s.path(oid))
	if err != nil {
		if vfs.IsNotExist(err) {
			return nil, vcserr.New(vcserr.ObjectMissing, oid)
		}
		return nil, err
	}
	s.blobCache.Add(oid, content)
	return content, nil
}

// computeCommitOID derives a commit's OID per spec.md §4.1: the digest of
// message‖timestamp‖parent-oid‖blob-oid₁…ₙ in file-list order.
func computeCommitOID(c *Commit) string {
	var b strings.Builder
	b.WriteString(c.Message)
	b.WriteString(c.Timestamp)
	b.WriteString(c.Parent)
	for _, f := range c.Files {
		b.WriteString(f.OID)
	}
	return hashBytes([]byte(b.String()))
}

// PutCommit computes and assigns the commit's OID, writes its object file,
// and returns the OID.
func (s *Store) PutCommit(c *Commit) (string, error) {
	c.OID = computeCommitOID(c)
	if !s.fs.Exists(s.path(c.OID)) {
		if err := s.fs.WriteFile(s.path(c.OID), encodeCommit(c), 0o644); err != nil {
			return "", err
		}
	}
	cp := *c
	cp.Files = append([]FileEntry(nil), c.Files...)
	s.commitCache.Add(c.OID, &cp)
	return c.OID, nil
}

// GetCommit reads and parses the commit object for oid.
func (s *Store) GetCommit(oid string) (*Commit, error) {
	if c, ok := s.commitCache.Get(oid); ok {
		cp := *c
		cp.Files = append([]FileEntry(nil), c.Files...)
		return &cp, nil
	}
	data, err := s.fs.ReadFile(s.path(oid))
	if err != nil {
		if vfs.IsNotExist(err) {
			return nil, vcserr.New(vcserr.ObjectMissing, oid)
		}
		return nil, err
	}
	c := decodeCommit(data)
	c.OID = oid
	s.commitCache.Add(oid, c)
	return c, nil
}
