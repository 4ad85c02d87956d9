package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"
)

// Key layout:
//
//	e/<20-digit index>  → JSON Entry
//	s/<subject>         → index of the transaction or audit entry
//	a/<subject>         → index of the latest anchor entry for subject
//
// The s/ and a/ keys are lookup indexes derived from the entries; only e/
// keys are covered by the hash chain.
const (
	entryPrefix   = "e/"
	subjectPrefix = "s/"
	anchorPrefix  = "a/"
)

// LevelDBStore persists the ledger in an embedded LevelDB database.
// A single process owns the database; appends are serialised by a mutex.
type LevelDBStore struct {
	mu     sync.Mutex
	db     *leveldb.DB
	logger *zap.Logger
	now    func() time.Time
}

// OpenLevelDBStore opens (or creates) a LevelDB ledger at path.
func OpenLevelDBStore(path string, logger *zap.Logger) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return NewLevelDBStore(db, logger), nil
}

// NewLevelDBStore wraps an already-open database.
func NewLevelDBStore(db *leveldb.DB, logger *zap.Logger) *LevelDBStore {
	return &LevelDBStore{db: db, logger: logger, now: time.Now}
}

// Close closes the underlying database.
func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

func entryKey(index int) []byte {
	return []byte(fmt.Sprintf("%s%020d", entryPrefix, index))
}

// Append implements Store.
func (s *LevelDBStore) Append(_ context.Context, e *Entry) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e == nil {
		return nil, checkAppend(nil, false)
	}
	exists, err := s.db.Has([]byte(subjectPrefix+e.Subject), nil)
	if err != nil {
		return nil, fmt.Errorf("check subject: %w", err)
	}
	if err := checkAppend(e, exists); err != nil {
		return nil, err
	}

	tail, err := s.tail()
	if err != nil {
		return nil, err
	}
	index, prevHash := 0, GenesisHash
	if tail != nil {
		index, prevHash = tail.Index+1, tail.Hash
	}
	sealed := seal(e, index, prevHash, s.now())

	data, err := json.Marshal(sealed)
	if err != nil {
		return nil, fmt.Errorf("marshal entry: %w", err)
	}
	batch := new(leveldb.Batch)
	batch.Put(entryKey(sealed.Index), data)
	idx := []byte(strconv.Itoa(sealed.Index))
	if sealed.Kind == KindAnchor {
		batch.Put([]byte(anchorPrefix+sealed.Subject), idx)
	} else {
		batch.Put([]byte(subjectPrefix+sealed.Subject), idx)
	}
	if err := s.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return nil, fmt.Errorf("write ledger entry: %w", err)
	}

	s.logger.Debug("ledger entry appended",
		zap.Int("idx", sealed.Index),
		zap.String("kind", string(sealed.Kind)),
		zap.String("subject", sealed.Subject),
	)
	return sealed, nil
}

// tail returns the last entry, or nil when the ledger is empty.
func (s *LevelDBStore) tail() (*Entry, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(entryPrefix)), nil)
	defer iter.Release()
	if !iter.Last() {
		return nil, iter.Error()
	}
	e := &Entry{}
	if err := json.Unmarshal(iter.Value(), e); err != nil {
		return nil, fmt.Errorf("decode ledger tail: %w", err)
	}
	return e, nil
}

// Get implements Store.
func (s *LevelDBStore) Get(_ context.Context, index int) (*Entry, error) {
	if index < 0 {
		return nil, fmt.Errorf("entry %d: %w", index, ErrNotFound)
	}
	return s.getEntry(entryKey(index))
}

func (s *LevelDBStore) getEntry(key []byte) (*Entry, error) {
	data, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	e := &Entry{}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return e, nil
}

// Len implements Store.
func (s *LevelDBStore) Len(_ context.Context) (int, error) {
	tail, err := s.tail()
	if err != nil || tail == nil {
		return 0, err
	}
	return tail.Index + 1, nil
}

// Head implements Store.
func (s *LevelDBStore) Head(_ context.Context) (string, error) {
	tail, err := s.tail()
	if err != nil {
		return "", err
	}
	if tail == nil {
		return GenesisHash, nil
	}
	return tail.Hash, nil
}

// forEach streams entries in index order.
func (s *LevelDBStore) forEach(fn func(*Entry) error) error {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(entryPrefix)), nil)
	defer iter.Release()
	for iter.Next() {
		e := &Entry{}
		if err := json.Unmarshal(iter.Value(), e); err != nil {
			return fmt.Errorf("decode %s: %w", iter.Key(), err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Verify implements Store. It is O(n) in ledger length.
func (s *LevelDBStore) Verify(_ context.Context) error {
	c := newChainChecker()
	return s.forEach(c.check)
}

func (s *LevelDBStore) project() (*projection, error) {
	p := newProjection()
	if err := s.forEach(p.apply); err != nil {
		return nil, err
	}
	return p, nil
}

// ListTransactions implements Store.
func (s *LevelDBStore) ListTransactions(_ context.Context) ([]*Transaction, error) {
	p, err := s.project()
	if err != nil {
		return nil, err
	}
	return p.transactions(), nil
}

// ListAuditRecords implements Store.
func (s *LevelDBStore) ListAuditRecords(_ context.Context) ([]*AuditRecord, error) {
	p, err := s.project()
	if err != nil {
		return nil, err
	}
	return p.auditRecords(), nil
}

// subjectView projects only the entries indexed for subject.
func (s *LevelDBStore) subjectView(subject string) (*projection, error) {
	p := newProjection()
	for _, prefix := range []string{subjectPrefix, anchorPrefix} {
		raw, err := s.db.Get([]byte(prefix+subject), nil)
		if errors.Is(err, leveldb.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", subject, err)
		}
		idx, err := strconv.Atoi(string(raw))
		if err != nil {
			return nil, fmt.Errorf("corrupt index for %s: %w", subject, err)
		}
		e, err := s.getEntry(entryKey(idx))
		if err != nil {
			return nil, err
		}
		if e.Subject != subject {
			return nil, fmt.Errorf("%w: index for %s points at entry %d (%s)", ErrTampered, subject, idx, e.Subject)
		}
		if err := p.apply(e); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// FindTransaction implements Store.
func (s *LevelDBStore) FindTransaction(_ context.Context, id string) (*Transaction, error) {
	p, err := s.subjectView(TransactionSubject(id))
	if err != nil {
		return nil, err
	}
	return p.transaction(id)
}

// FindAudit implements Store.
func (s *LevelDBStore) FindAudit(_ context.Context, id string) (*AuditRecord, error) {
	p, err := s.subjectView(AuditSubject(id))
	if err != nil {
		return nil, err
	}
	return p.audit(id)
}
