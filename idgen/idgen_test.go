package idgen

import (
	"strings"
	"testing"
)

func TestNanoID_Length(t *testing.T) {
	for _, length := range []int{8, 12, 16, 24} {
		id := NanoID(length)()
		if len(id) != length {
			t.Fatalf("NanoID(%d): got length %d", length, len(id))
		}
	}
}

func TestNanoID_Alphabet(t *testing.T) {
	id := NanoID(100)()
	for _, c := range id {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')) {
			t.Fatalf("NanoID: unexpected character %q in %q", c, id)
		}
	}
}

func TestUUIDv7_Format(t *testing.T) {
	id := UUIDv7()()
	parts := strings.Split(id, "-")
	if len(parts) != 5 {
		t.Fatalf("UUIDv7: expected 5 parts, got %d in %q", len(parts), id)
	}
	if len(id) != 36 {
		t.Fatalf("UUIDv7: expected length 36, got %d", len(id))
	}
}

func TestUUIDv7_Uniqueness(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := gen()
		if _, ok := seen[id]; ok {
			t.Fatalf("UUIDv7: duplicate at iteration %d", i)
		}
		seen[id] = struct{}{}
	}
}

func TestSession_PrefixAndParse(t *testing.T) {
	id := Session()
	if !strings.HasPrefix(id, "qs_") {
		t.Fatalf("Session: expected prefix qs_, got %q", id)
	}
	if _, err := Parse(id); err != nil {
		t.Fatalf("Parse(%q): %v", id, err)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse("qs_not-a-uuid"); err == nil {
		t.Fatal("expected error for invalid id")
	}
}
