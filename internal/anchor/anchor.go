// Package anchor defines the contract with the external anchoring ledger
// that independently records fingerprints and Merkle roots.
//
// The engine only requires read-after-accept consistency: once a digest has
// been accepted under a reference, ReadBack returns that exact digest. Local
// verification never depends on the anchor being reachable.
package anchor

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrUnavailable wraps every failure to reach or be accepted by the
	// anchor (timeouts, transport errors, rejections).
	ErrUnavailable = errors.New("anchor unavailable")

	// ErrUnknownRef is returned by ReadBack for a reference the anchor has
	// never issued.
	ErrUnknownRef = errors.New("anchor reference unknown")
)

// Kind is what a submitted digest represents.
type Kind string

const (
	KindFingerprint Kind = "fingerprint"
	KindRoot        Kind = "root"
)

// Client submits digests to the external anchor and reads them back.
type Client interface {
	SubmitFingerprint(ctx context.Context, digest string) (string, error)
	SubmitRoot(ctx context.Context, digest string) (string, error)
	ReadBack(ctx context.Context, ref string) (string, error)
}

// Pad32 renders a hex digest as a 0x-prefixed, left zero-padded 32-byte word,
// the form external ledgers expect.
func Pad32(digest string) string {
	d := strings.ToLower(strings.TrimPrefix(digest, "0x"))
	if len(d) < 64 {
		d = strings.Repeat("0", 64-len(d)) + d
	}
	return "0x" + d
}

// Unpad32 reverses Pad32 for a 64-character digest.
func Unpad32(word string) string {
	return strings.ToLower(strings.TrimPrefix(word, "0x"))
}
