package vm

import "testing"

// ---------------------------------------------------------------------------
// Canonical type table tests
// ---------------------------------------------------------------------------

func TestCanonicalizeInterns(t *testing.T) {
	iso := newTestIsolate()
	lib := iso.RegisterLibrary("test:app")
	a := iso.NewClass("A", lib, nil)
	iso.RegisterClass(a)
	b := iso.NewClass("B", lib, nil)
	iso.RegisterClass(b)

	table := iso.store.canonicalTypeArgs
	ta1 := table.Canonicalize(iso, a, b)
	ta2 := table.Canonicalize(iso, a, b)
	if ta1 != ta2 {
		t.Error("equal vectors should canonicalize to the same instance")
	}
	if table.Canonicalize(iso, b, a) == ta1 {
		t.Error("order matters: (b, a) is a different vector")
	}
}

func TestCanonicalTableLookupAfterIDChange(t *testing.T) {
	iso := newTestIsolate()
	lib := iso.RegisterLibrary("test:app")
	a := iso.NewClass("A", lib, nil)
	iso.RegisterClass(a)
	filler := iso.NewClass("F", lib, nil)
	iso.RegisterClass(filler)
	b := iso.NewClass("B", lib, nil)
	iso.RegisterClass(b)

	table := iso.store.canonicalTypeArgs
	ta := table.Canonicalize(iso, a, b)

	// Simulate compaction moving b down into a freed slot: b's id
	// changes, so the entry hashes to a new bucket until the rehash.
	dest := filler.ID()
	iso.ClassTable().SetAt(dest, nil)
	iso.ClassTable().MoveClass(dest, b.ID())

	table.rehash()

	if got := table.Lookup(a, b); got != ta {
		t.Error("entry should be findable again after rehash")
	}
}

func TestCanonicalTableGrowKeepsEntries(t *testing.T) {
	iso := newTestIsolate()
	lib := iso.RegisterLibrary("test:app")
	var vectors []*TypeArguments
	var classes []*Class
	for i := 0; i < 24; i++ {
		cls := iso.NewClass("C", lib, nil)
		iso.RegisterClass(cls)
		classes = append(classes, cls)
		vectors = append(vectors, iso.store.canonicalTypeArgs.Canonicalize(iso, cls))
	}
	for i, cls := range classes {
		if got := iso.store.canonicalTypeArgs.Lookup(cls); got != vectors[i] {
			t.Fatalf("vector %d lost after growth", i)
		}
	}
}
