package vm

import "fmt"

// ---------------------------------------------------------------------------
// Structural identity keys
// ---------------------------------------------------------------------------

// entityKind tags the variants of a structural identity key.
type entityKind uint8

const (
	entityLibrary entityKind = iota
	entityClass
	entityField
)

// entityKey identifies a reloadable entity structurally: a library by URL,
// a class by simple name under its library URL, a field by name under its
// owning class id. Equality and hashing are the native Go map semantics of
// the struct, dispatched per variant by construction.
type entityKey struct {
	kind entityKind
	url  string
	name string
	cid  ClassID
}

func libraryKey(url string) entityKey {
	return entityKey{kind: entityLibrary, url: url}
}

func classKey(name, libURL string) entityKey {
	return entityKey{kind: entityClass, url: libURL, name: name}
}

func fieldKey(name string, owner ClassID) entityKey {
	return entityKey{kind: entityField, name: name, cid: owner}
}

// keyForClass builds the structural key for a class.
func keyForClass(cls *Class) entityKey {
	return classKey(cls.Name, cls.LibraryURL())
}

// keyForLibrary builds the structural key for a library.
func keyForLibrary(lib *Library) entityKey {
	return libraryKey(lib.URL)
}

func (k entityKey) String() string {
	switch k.kind {
	case entityLibrary:
		return fmt.Sprintf("library(%s)", k.url)
	case entityClass:
		return fmt.Sprintf("class(%s:%s)", k.url, k.name)
	case entityField:
		return fmt.Sprintf("field(%d.%s)", k.cid, k.name)
	}
	return "?"
}

// ---------------------------------------------------------------------------
// Old-entity sets
// ---------------------------------------------------------------------------

// oldClassSet is the pre-reload snapshot of classes, looked up by
// structural identity to pair new classes with their predecessors.
type oldClassSet struct {
	byKey map[entityKey]*Class
}

func newOldClassSet() *oldClassSet {
	return &oldClassSet{byKey: make(map[entityKey]*Class)}
}

// Insert adds a class; returns false if a class with the same structural
// identity was already present.
func (s *oldClassSet) Insert(cls *Class) bool {
	key := keyForClass(cls)
	if _, present := s.byKey[key]; present {
		return false
	}
	s.byKey[key] = cls
	return true
}

// Lookup finds the old class structurally matching cls, or nil.
func (s *oldClassSet) Lookup(cls *Class) *Class {
	return s.byKey[keyForClass(cls)]
}

// oldLibrarySet is the pre-reload snapshot of libraries, keyed by URL.
type oldLibrarySet struct {
	byKey map[entityKey]*Library
}

func newOldLibrarySet() *oldLibrarySet {
	return &oldLibrarySet{byKey: make(map[entityKey]*Library)}
}

// Insert adds a library; returns false on a duplicate URL.
func (s *oldLibrarySet) Insert(lib *Library) bool {
	key := keyForLibrary(lib)
	if _, present := s.byKey[key]; present {
		return false
	}
	s.byKey[key] = lib
	return true
}

// Lookup finds the old library with lib's URL, or nil.
func (s *oldLibrarySet) Lookup(lib *Library) *Library {
	return s.byKey[keyForLibrary(lib)]
}

// ---------------------------------------------------------------------------
// Replacement maps
// ---------------------------------------------------------------------------

// classMap records replacement -> original class pairs. A new class with
// no predecessor maps to itself.
type classMap struct {
	byNew map[*Class]*Class
	order []*Class
}

func newClassMap() *classMap {
	return &classMap{byNew: make(map[*Class]*Class)}
}

// Add records a pairing; double insertion of the same new class is an
// engine bug.
func (m *classMap) Add(replacementOrNew, original *Class) {
	if _, present := m.byNew[replacementOrNew]; present {
		panic("vm: class mapped twice in reload")
	}
	m.byNew[replacementOrNew] = original
	m.order = append(m.order, replacementOrNew)
}

// Original returns the old class paired with a new class, or nil.
func (m *classMap) Original(replacementOrNew *Class) *Class {
	return m.byNew[replacementOrNew]
}

// ForEach visits pairs in insertion order.
func (m *classMap) ForEach(fn func(newCls, oldCls *Class)) {
	for _, newCls := range m.order {
		fn(newCls, m.byNew[newCls])
	}
}

// libraryMap records replacement -> original library pairs.
type libraryMap struct {
	byNew map[*Library]*Library
	order []*Library
}

func newLibraryMap() *libraryMap {
	return &libraryMap{byNew: make(map[*Library]*Library)}
}

func (m *libraryMap) Add(replacementOrNew, original *Library) {
	if _, present := m.byNew[replacementOrNew]; present {
		panic("vm: library mapped twice in reload")
	}
	m.byNew[replacementOrNew] = original
	m.order = append(m.order, replacementOrNew)
}

func (m *libraryMap) ForEach(fn func(newLib, oldLib *Library)) {
	for _, newLib := range m.order {
		fn(newLib, m.byNew[newLib])
	}
}

// ---------------------------------------------------------------------------
// Become map
// ---------------------------------------------------------------------------

// becomeMap accumulates pending identity forwards (old entity -> its
// replacement) during reconciliation, keyed by raw identity, and drains
// into the parallel arrays the forwarder consumes.
type becomeMap struct {
	byOld map[Object]Object
	order []Object
}

func newBecomeMap() *becomeMap {
	return &becomeMap{byOld: make(map[Object]Object)}
}

// Add enqueues a forward. Re-adding the same pair is a no-op (the enum
// and static-field passes can both visit a field); enqueueing an old
// entity with a different replacement is an engine bug, as it would mean
// forwarding to multiple objects.
func (m *becomeMap) Add(old, replacement Object) {
	if prev, present := m.byOld[old]; present {
		if prev == replacement {
			return
		}
		panic(fmt.Sprintf("vm: %s enqueued twice in become map", old.Header().Kind()))
	}
	m.byOld[old] = replacement
	m.order = append(m.order, old)
}

// Len returns the number of pending forwards.
func (m *becomeMap) Len() int { return len(m.order) }

// Drain fills before/after parallel arrays in insertion order.
func (m *becomeMap) Drain(iso *Isolate) (before, after *Array) {
	before = iso.NewArray(len(m.order))
	after = iso.NewArray(len(m.order))
	for i, old := range m.order {
		before.Elements[i] = old
		after.Elements[i] = m.byOld[old]
	}
	return before, after
}
