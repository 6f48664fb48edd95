package vm

import "testing"

// ---------------------------------------------------------------------------
// Identity key tests
// ---------------------------------------------------------------------------

func TestEntityKeyVariantsAreDistinct(t *testing.T) {
	libKey := libraryKey("test:app")
	clsKey := classKey("", "test:app")
	if libKey == clsKey {
		t.Error("library and class keys with the same URL must differ")
	}
	if classKey("A", "test:app") == classKey("A", "test:other") {
		t.Error("class keys under different libraries must differ")
	}
	if fieldKey("v", 4) == fieldKey("v", 5) {
		t.Error("field keys under different classes must differ")
	}
}

func TestKeyForClassUsesNameAndLibraryURL(t *testing.T) {
	iso := newTestIsolate()
	lib := iso.RegisterLibrary("test:app")
	oldCls, newCls := newClassPair(iso, lib, "A")

	if keyForClass(oldCls) != keyForClass(newCls) {
		t.Error("structurally identical classes must share a key")
	}
}

// ---------------------------------------------------------------------------
// Old-set tests
// ---------------------------------------------------------------------------

func TestOldClassSetLookupByStructure(t *testing.T) {
	iso := newTestIsolate()
	lib := iso.RegisterLibrary("test:app")
	oldCls, newCls := newClassPair(iso, lib, "A")

	set := newOldClassSet()
	if !set.Insert(oldCls) {
		t.Fatal("first insert should succeed")
	}
	if set.Insert(newCls) {
		t.Error("insert of a structurally equal class should report a duplicate")
	}
	if got := set.Lookup(newCls); got != oldCls {
		t.Error("lookup by the replacement should find the original")
	}
}

func TestOldLibrarySetLookupByURL(t *testing.T) {
	iso := newTestIsolate()
	oldLib := iso.RegisterLibrary("test:app")
	newLib := iso.RegisterLibrary("test:app")

	set := newOldLibrarySet()
	if !set.Insert(oldLib) {
		t.Fatal("first insert should succeed")
	}
	if got := set.Lookup(newLib); got != oldLib {
		t.Error("lookup by URL should find the original")
	}
}

// ---------------------------------------------------------------------------
// Become map tests
// ---------------------------------------------------------------------------

func TestBecomeMapDrainPreservesPairing(t *testing.T) {
	iso := newTestIsolate()
	lib := iso.RegisterLibrary("test:app")
	oldA, newA := newClassPair(iso, lib, "A")
	oldB, newB := newClassPair(iso, lib, "B")

	m := newBecomeMap()
	m.Add(oldA, newA)
	m.Add(oldB, newB)
	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2", m.Len())
	}

	before, after := m.Drain(iso)
	if before.Len() != 2 || after.Len() != 2 {
		t.Fatalf("drained lengths = %d/%d, want 2/2", before.Len(), after.Len())
	}
	for i := 0; i < before.Len(); i++ {
		oldCls := before.Elements[i].(*Class)
		newCls := after.Elements[i].(*Class)
		if oldCls.Name != newCls.Name {
			t.Errorf("pair %d mismatched: %s -> %s", i, oldCls, newCls)
		}
	}
}

func TestBecomeMapDoubleEnqueueIsFatal(t *testing.T) {
	iso := newTestIsolate()
	lib := iso.RegisterLibrary("test:app")
	oldCls, newCls := newClassPair(iso, lib, "A")
	other := iso.NewClass("B", lib, nil)
	iso.RegisterClass(other)

	m := newBecomeMap()
	m.Add(oldCls, newCls)
	expectPanic(t, "enqueued twice", func() {
		m.Add(oldCls, other)
	})
}

func TestClassMapDoubleAddIsFatal(t *testing.T) {
	iso := newTestIsolate()
	lib := iso.RegisterLibrary("test:app")
	oldCls, newCls := newClassPair(iso, lib, "A")

	m := newClassMap()
	m.Add(newCls, oldCls)
	expectPanic(t, "mapped twice", func() {
		m.Add(newCls, oldCls)
	})
}
