package idgen

import (
	"sort"
	"strings"
	"testing"
)

func TestNanoIDLength(t *testing.T) {
	for _, length := range []int{8, 12, 24} {
		id := NanoID(length)()
		if len(id) != length {
			t.Fatalf("NanoID(%d): got length %d", length, len(id))
		}
	}
}

func TestNanoIDAlphabet(t *testing.T) {
	id := NanoID(100)()
	for _, c := range id {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')) {
			t.Fatalf("NanoID: unexpected character %q in %q", c, id)
		}
	}
}

func TestNanoIDUniqueness(t *testing.T) {
	gen := NanoID(12)
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := gen()
		if _, ok := seen[id]; ok {
			t.Fatalf("NanoID: duplicate at iteration %d: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestUUIDv7SortsByCreation(t *testing.T) {
	gen := UUIDv7()
	ids := make([]string, 50)
	for i := range ids {
		ids[i] = gen()
	}
	if !sort.StringsAreSorted(ids) {
		t.Fatal("UUIDv7: ids generated in sequence should sort in creation order")
	}
}

func TestPrefixedKeepsKindReadable(t *testing.T) {
	for _, prefix := range []string{"hl_", "drw_", "txt_"} {
		id := Prefixed(prefix, Default)()
		if !strings.HasPrefix(id, prefix) {
			t.Fatalf("Prefixed: expected prefix %q, got %q", prefix, id)
		}
		if len(id) != len(prefix)+36 {
			t.Fatalf("Prefixed: expected UUID body after %q, got %q", prefix, id)
		}
	}
}
