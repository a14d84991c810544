package integrity

import (
	"errors"
	"testing"
	"time"

	"github.com/c04ch1337/phoenix-orch-sub002/pkg/fragment"
)

func TestDigestIsDeterministic(t *testing.T) {
	id, err := fragment.NewIdentifier()
	if err != nil {
		t.Fatalf("NewIdentifier returned error: %v", err)
	}

	v := New([]byte("signing-key"))
	first := v.DigestFor(id)
	second := v.DigestFor(id)
	if first != second {
		t.Fatalf("digest not deterministic: %q vs %q", first, second)
	}
	if first == "" {
		t.Fatalf("digest is empty")
	}
}

func TestDigestIgnoresContent(t *testing.T) {
	// The digest authenticates identity, not content: two fragments with the
	// same id but different content share a digest.
	id, err := fragment.NewIdentifier()
	if err != nil {
		t.Fatalf("NewIdentifier returned error: %v", err)
	}

	v := New(nil)
	a := &fragment.Fragment{ID: id, Content: []byte("a"), CreatedAt: time.Now(), Digest: v.DigestFor(id)}
	b := &fragment.Fragment{ID: id, Content: []byte("b"), CreatedAt: time.Now(), Digest: v.DigestFor(id)}

	if err := v.Check(a); err != nil {
		t.Fatalf("Check(a) returned error: %v", err)
	}
	if err := v.Check(b); err != nil {
		t.Fatalf("Check(b) returned error: %v", err)
	}
}

func TestCheckDetectsMismatch(t *testing.T) {
	id, err := fragment.NewIdentifier()
	if err != nil {
		t.Fatalf("NewIdentifier returned error: %v", err)
	}

	v := New(nil)
	f := &fragment.Fragment{ID: id, Digest: "tampered"}
	if err := v.Check(f); !errors.Is(err, ErrDigestMismatch) {
		t.Fatalf("Check: got %v, want ErrDigestMismatch", err)
	}
}

func TestKeyedDigestDependsOnKeyAndContent(t *testing.T) {
	id, err := fragment.NewIdentifier()
	if err != nil {
		t.Fatalf("NewIdentifier returned error: %v", err)
	}

	a := New([]byte("key-a")).KeyedDigest([]byte("payload"), id)
	b := New([]byte("key-b")).KeyedDigest([]byte("payload"), id)
	c := New([]byte("key-a")).KeyedDigest([]byte("other"), id)

	if a == b {
		t.Fatalf("keyed digest ignores key")
	}
	if a == c {
		t.Fatalf("keyed digest ignores content")
	}
}
