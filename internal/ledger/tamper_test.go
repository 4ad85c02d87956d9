package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"go.uber.org/zap"
)

func seedMemory(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	for _, id := range []string{"a", "b", "c"} {
		e, err := newEntry(KindTransaction, TransactionSubject(id), map[string]string{"id": id})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.Append(context.Background(), e); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestVerify_detectsPayloadRewrite(t *testing.T) {
	s := seedMemory(t)
	s.entries[1].Payload = json.RawMessage(`{"id":"b","amount":1}`)

	err := s.Verify(context.Background())
	if !errors.Is(err, ErrTampered) {
		t.Fatalf("expected ErrTampered, got %v", err)
	}
}

func TestVerify_detectsRehashedEntry(t *testing.T) {
	s := seedMemory(t)
	// Rewrite the payload and recompute both of the entry's own hashes; the
	// successor's PrevHash still exposes the change.
	e := s.entries[1]
	e.Payload = json.RawMessage(`{"id":"b2"}`)
	e.DataHash = sha256Sum(e.Payload)
	e.Hash = hashEntry(e)

	if err := s.Verify(context.Background()); !errors.Is(err, ErrTampered) {
		t.Fatalf("expected ErrTampered, got %v", err)
	}
}

func TestVerify_detectsDeletedEntry(t *testing.T) {
	s := seedMemory(t)
	s.entries = append(s.entries[:1], s.entries[2:]...)

	if err := s.Verify(context.Background()); !errors.Is(err, ErrTampered) {
		t.Fatalf("expected ErrTampered, got %v", err)
	}
}

func TestLevelDBVerify_detectsOverwrittenValue(t *testing.T) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	s := NewLevelDBStore(db, zap.NewNop())

	for _, id := range []string{"a", "b"} {
		e, _ := newEntry(KindTransaction, TransactionSubject(id), map[string]string{"id": id})
		if _, err := s.Append(context.Background(), e); err != nil {
			t.Fatal(err)
		}
	}

	// Overwrite entry 0 directly in the key-value store.
	stored, err := s.Get(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	stored.Payload = json.RawMessage(`{"id":"forged"}`)
	raw, _ := json.Marshal(stored)
	if err := db.Put(entryKey(0), raw, nil); err != nil {
		t.Fatal(err)
	}

	if err := s.Verify(context.Background()); !errors.Is(err, ErrTampered) {
		t.Fatalf("expected ErrTampered, got %v", err)
	}
}

func TestSeal_truncatesToMicroseconds(t *testing.T) {
	e, _ := newEntry(KindAudit, AuditSubject("x"), map[string]int{"n": 1})
	sealed := seal(e, 0, GenesisHash, sampleTime)
	if sealed.AppendedAt.Nanosecond()%1000 != 0 {
		t.Errorf("AppendedAt not truncated: %v", sealed.AppendedAt)
	}
	if sealed.Hash != hashEntry(sealed) {
		t.Error("sealed hash does not match its header")
	}
}

var sampleTime = time.Date(2026, 1, 2, 3, 4, 5, 123456789, time.UTC)
