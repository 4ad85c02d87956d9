package anchor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
)

// MemoryClient is an in-process anchor. It is the oracle used in tests and
// single-node development; references are deterministic per submission.
type MemoryClient struct {
	mu      sync.RWMutex
	records map[string]string
	seq     int
	down    atomic.Bool
}

// NewMemoryClient creates an empty MemoryClient.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{records: make(map[string]string)}
}

// SetAvailable toggles simulated outages.
func (m *MemoryClient) SetAvailable(ok bool) {
	m.down.Store(!ok)
}

// Len returns the number of accepted submissions.
func (m *MemoryClient) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// SubmitFingerprint implements Client.
func (m *MemoryClient) SubmitFingerprint(ctx context.Context, digest string) (string, error) {
	return m.submit(ctx, KindFingerprint, digest)
}

// SubmitRoot implements Client.
func (m *MemoryClient) SubmitRoot(ctx context.Context, digest string) (string, error) {
	return m.submit(ctx, KindRoot, digest)
}

func (m *MemoryClient) submit(ctx context.Context, kind Kind, digest string) (string, error) {
	if err := m.check(ctx); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	sum := sha256.Sum256([]byte(string(kind) + "|" + strconv.Itoa(m.seq) + "|" + digest))
	ref := "0x" + hex.EncodeToString(sum[:])
	m.records[ref] = Pad32(digest)
	return ref, nil
}

// ReadBack implements Client.
func (m *MemoryClient) ReadBack(ctx context.Context, ref string) (string, error) {
	if err := m.check(ctx); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	word, ok := m.records[ref]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRef, ref)
	}
	return Unpad32(word), nil
}

// Tamper overwrites the value stored under ref. Tests use it to simulate a
// local ledger that disagrees with the anchor.
func (m *MemoryClient) Tamper(ref, digest string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[ref] = Pad32(digest)
}

func (m *MemoryClient) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if m.down.Load() {
		return fmt.Errorf("%w: simulated outage", ErrUnavailable)
	}
	return nil
}
