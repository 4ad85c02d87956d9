package merkle_test

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/jmerrifield20/SecurePOS/internal/merkle"
)

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// leaves returns SHA-256("a"), SHA-256("b"), ... for the first n letters.
func leaves(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = digest(string(rune('a' + i)))
	}
	return out
}

func TestHashPair_orderIndependent(t *testing.T) {
	a, b := digest("a"), digest("b")
	if merkle.HashPair(a, b) != merkle.HashPair(b, a) {
		t.Error("HashPair must not depend on argument order")
	}
	// "3e23..." (b) sorts before "ca97..." (a).
	if got, want := merkle.HashPair(a, b), digest(b+a); got != want {
		t.Errorf("HashPair: got %s, want %s", got, want)
	}
}

func TestBuild_empty(t *testing.T) {
	tree := merkle.Build(nil)
	if !tree.Empty() {
		t.Error("expected empty tree")
	}
	if tree.Root != merkle.EmptyRoot {
		t.Errorf("empty root: got %q", tree.Root)
	}
	if _, err := merkle.Prove(tree, 0); !errors.Is(err, merkle.ErrEmptyTree) {
		t.Errorf("Prove on empty tree: got %v, want ErrEmptyTree", err)
	}
}

func TestBuild_singleLeafSelfPairs(t *testing.T) {
	a := digest("a")
	tree := merkle.Build([]string{a})

	if want := merkle.HashPair(a, a); tree.Root != want {
		t.Errorf("root: got %s, want %s", tree.Root, want)
	}
	const pinned = "bc2ef2f0ec3652599ac78ba7e2aa6f1996fcb195a0418f94940648a7ed22402c"
	if tree.Root != pinned {
		t.Errorf("root: got %s, want %s", tree.Root, pinned)
	}
	if tree.Root == a {
		t.Error("single-leaf root must not equal the leaf")
	}
}

func TestBuild_threeLeaves(t *testing.T) {
	l := leaves(3)
	tree := merkle.Build(l)

	ab := merkle.HashPair(l[0], l[1])
	cc := merkle.HashPair(l[2], l[2])
	if got := tree.Levels[1]; len(got) != 2 || got[0] != ab || got[1] != cc {
		t.Fatalf("level 1: got %v, want [%s %s]", got, ab, cc)
	}
	if want := merkle.HashPair(ab, cc); tree.Root != want {
		t.Errorf("root: got %s, want %s", tree.Root, want)
	}
	const pinned = "69b606bf5ab36a173feea06d34d379564dc24fcb4b4302ca4b07a4cf58af5d0c"
	if tree.Root != pinned {
		t.Errorf("root: got %s, want %s", tree.Root, pinned)
	}
}

func TestBuild_fiveLeaves(t *testing.T) {
	l := leaves(5)
	tree := merkle.Build(l)

	ab := merkle.HashPair(l[0], l[1])
	cd := merkle.HashPair(l[2], l[3])
	ee := merkle.HashPair(l[4], l[4])
	abcd := merkle.HashPair(ab, cd)
	eeee := merkle.HashPair(ee, ee)
	if want := merkle.HashPair(abcd, eeee); tree.Root != want {
		t.Errorf("root: got %s, want %s", tree.Root, want)
	}
	const pinned = "83ac61b9fcac225f3d6b2fcc6ef49c80f10b19970f5fc428ca05042d0cc61855"
	if tree.Root != pinned {
		t.Errorf("root: got %s, want %s", tree.Root, pinned)
	}
	if len(tree.Levels) != 4 {
		t.Errorf("expected 4 levels (5,3,2,1), got %d", len(tree.Levels))
	}
}

func TestBuild_doesNotAliasInput(t *testing.T) {
	l := leaves(4)
	tree := merkle.Build(l)
	root := tree.Root
	l[0] = digest("z")
	if tree.Levels[0][0] == l[0] || tree.Root != root {
		t.Error("tree must not share storage with the caller's slice")
	}
}

func TestProveVerify_everyIndex(t *testing.T) {
	for n := 1; n <= 17; n++ {
		l := leaves(n)
		tree := merkle.Build(l)
		for i := range l {
			p, err := merkle.Prove(tree, i)
			if err != nil {
				t.Fatalf("n=%d i=%d: %v", n, i, err)
			}
			if p.Leaf != l[i] {
				t.Errorf("n=%d i=%d: proof leaf %s, want %s", n, i, p.Leaf, l[i])
			}
			if !merkle.Verify(p.Leaf, p.Siblings, tree.Root) {
				t.Errorf("n=%d i=%d: proof did not verify", n, i)
			}
		}
	}
}

func TestProve_outOfRange(t *testing.T) {
	tree := merkle.Build(leaves(3))
	for _, i := range []int{-1, 3, 100} {
		if _, err := merkle.Prove(tree, i); !errors.Is(err, merkle.ErrIndexOutOfRange) {
			t.Errorf("index %d: got %v, want ErrIndexOutOfRange", i, err)
		}
	}
}

func TestVerify_rejectsWrongLeafAndRoot(t *testing.T) {
	l := leaves(6)
	tree := merkle.Build(l)
	p, _ := merkle.Prove(tree, 2)

	if merkle.Verify(digest("x"), p.Siblings, tree.Root) {
		t.Error("foreign leaf must not verify")
	}
	if merkle.Verify(p.Leaf, p.Siblings, digest("root")) {
		t.Error("wrong root must not verify")
	}
	if merkle.Verify(p.Leaf, p.Siblings[:len(p.Siblings)-1], tree.Root) {
		t.Error("truncated proof must not verify")
	}
	if merkle.Verify(p.Leaf, nil, merkle.EmptyRoot) {
		t.Error("empty root must never verify")
	}
}

func TestBuild_substitutionChangesRoot(t *testing.T) {
	for n := 2; n <= 9; n++ {
		l := leaves(n)
		root := merkle.Build(l).Root
		for i := range l {
			tampered := append([]string(nil), l...)
			tampered[i] = digest("tampered")
			if merkle.Build(tampered).Root == root {
				t.Errorf("n=%d: substituting leaf %d did not change the root", n, i)
			}
		}
	}
}
