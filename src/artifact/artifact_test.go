package artifact

import (
	"reflect"
	"testing"
)

func TestHashDeterminism(t *testing.T) {
	a1 := New("the quick brown fox", Knowledge)
	a2 := New("the quick brown fox", Knowledge)

	if a1.Hash != a2.Hash {
		t.Fatalf("identical data produced different hashes: %s vs %s", a1.Hash, a2.Hash)
	}

	corpus := []string{"", "a", "b", "ab", "ba", "insight #1", "insight #2"}
	seen := map[string]string{}
	for _, d := range corpus {
		h := New(d, Knowledge).Hash
		if prev, ok := seen[h]; ok {
			t.Fatalf("hash collision between %q and %q", prev, d)
		}
		seen[h] = d
	}
}

func TestEvolveCopyOnWrite(t *testing.T) {
	a := NewWithValue("original", Knowledge, 0.5)
	a.ProcessedBy = []string{"alice"}

	b := a.Evolve("bob")

	if b == a {
		t.Fatal("Evolve returned the same instance")
	}
	if b.Hash != a.Hash {
		t.Fatalf("Evolve changed the hash: %s vs %s", b.Hash, a.Hash)
	}
	if !reflect.DeepEqual(b.ProcessedBy, []string{"alice", "bob"}) {
		t.Fatalf("wrong provenance: %v", b.ProcessedBy)
	}
	if !reflect.DeepEqual(a.ProcessedBy, []string{"alice"}) {
		t.Fatalf("Evolve mutated the original provenance: %v", a.ProcessedBy)
	}
	if b.Value <= a.Value {
		t.Fatalf("Evolve did not bump the value: %f -> %f", a.Value, b.Value)
	}
	if b.Timestamp < a.Timestamp {
		t.Fatalf("Evolve did not refresh the timestamp: %f -> %f", a.Timestamp, b.Timestamp)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	a := NewWithValue("payload", Media, 0.25)
	a.ProcessedBy = []string{"n1", "n2"}

	raw, err := a.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	var back Artifact
	if err := back.Unmarshal(raw); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(&back, a) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", back, *a)
	}
	if err := back.Verify(); err != nil {
		t.Fatal(err)
	}
}

func TestVerifyMismatch(t *testing.T) {
	a := New("genuine data", Knowledge)
	a.Data = "tampered data"

	if err := a.Verify(); err == nil {
		t.Fatal("expected verification failure for tampered data")
	}
}
