package vm

import (
	"fmt"
	"sync"
)

// ---------------------------------------------------------------------------
// Class
// ---------------------------------------------------------------------------

// classState tracks how far a class has progressed toward a computed
// instance layout.
type classState uint8

const (
	stateAllocated classState = iota
	statePrefinalized
	stateFinalized
)

// Class is a runtime class: a named bag of fields and functions owned by a
// library. Classes are identified structurally by (name, owning library
// URL); their numeric identity is the class table index, which stays
// stable across a reload.
type Class struct {
	ObjectHeader

	id      ClassID
	Name    string
	library *Library
	script  *Script
	super   *Class

	fields    []*Field
	functions []*Function

	// Canonical constants compiled against this class. Carried over to the
	// replacement on commit.
	constants []Value

	state           classState
	instanceSize    int
	numNativeFields int
	isEnum          bool
}

// NewClass allocates a class in old space. The class is not yet registered
// in the class table and has no computed layout.
func (iso *Isolate) NewClass(name string, lib *Library, script *Script) *Class {
	cls := &Class{Name: name, library: lib, script: script}
	iso.heap.allocate(cls, KindClass, 12, GenOld)
	return cls
}

// ID returns the class table index.
func (c *Class) ID() ClassID { return c.id }

// Library returns the owning library, or nil for a toplevel holder that
// has been detached.
func (c *Class) Library() *Library { return c.library }

// LibraryURL returns the owning library's URL, or "" when detached.
func (c *Class) LibraryURL() string {
	if c.library == nil {
		return ""
	}
	return c.library.URL
}

// Script returns the script this class was compiled from.
func (c *Class) Script() *Script { return c.script }

// Super returns the superclass, or nil.
func (c *Class) Super() *Class { return c.super }

// SetSuper sets the superclass. Must happen before finalization.
func (c *Class) SetSuper(super *Class) {
	if c.state == stateFinalized {
		panic("vm: SetSuper on a finalized class")
	}
	c.super = super
}

// IsEnum reports whether this is an enum class.
func (c *Class) IsEnum() bool { return c.isEnum }

// SetIsEnum marks this class as an enum class.
func (c *Class) SetIsEnum(v bool) { c.isEnum = v }

// NumNativeFields returns the native field count.
func (c *Class) NumNativeFields() int { return c.numNativeFields }

// SetNumNativeFields sets the native field count.
func (c *Class) SetNumNativeFields(n int) { c.numNativeFields = n }

// IsFinalized reports whether the instance layout has been computed.
func (c *Class) IsFinalized() bool { return c.state == stateFinalized }

// IsPrefinalized reports whether the class has a declared instance size
// but no computed field offsets.
func (c *Class) IsPrefinalized() bool { return c.state == statePrefinalized }

// Prefinalize declares an instance size without computing field offsets.
func (c *Class) Prefinalize(instanceSize int) {
	if c.state == stateFinalized {
		panic("vm: Prefinalize on a finalized class")
	}
	c.state = statePrefinalized
	c.instanceSize = instanceSize
}

// InstanceSize returns the number of field slots an instance carries.
func (c *Class) InstanceSize() int { return c.instanceSize }

// NumInstanceFields returns the instance field count including inherited
// fields. Only meaningful once finalized.
func (c *Class) NumInstanceFields() int { return c.instanceSize }

// AddField appends a field declaration. The field's owner is set to this
// class.
func (c *Class) AddField(f *Field) {
	f.owner = c
	c.fields = append(c.fields, f)
}

// AddFunction appends a function. The function's owner is set to this
// class.
func (c *Class) AddFunction(fn *Function) {
	fn.owner = c
	c.functions = append(c.functions, fn)
}

// Fields returns the class's declared fields.
func (c *Class) Fields() []*Field { return c.fields }

// Functions returns the class's functions.
func (c *Class) Functions() []*Function { return c.functions }

// LookupField finds a declared field by name in this class only.
func (c *Class) LookupField(name string) *Field {
	for _, f := range c.fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// CanonicalConstants returns the constants compiled against this class.
func (c *Class) CanonicalConstants() []Value { return c.constants }

// AddCanonicalConstant records a constant compiled against this class.
func (c *Class) AddCanonicalConstant(v Value) {
	c.constants = append(c.constants, v)
}

// LookupFunction finds a function by name in this class only.
func (c *Class) LookupFunction(name string) *Function {
	for _, fn := range c.functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// LookupStaticFunction finds a static function by name in this class only.
func (c *Class) LookupStaticFunction(name string) *Function {
	fn := c.LookupFunction(name)
	if fn == nil || !fn.IsStatic {
		return nil
	}
	return fn
}

// LookupDynamicFunction resolves an instance function by name, walking the
// superclass chain.
func (c *Class) LookupDynamicFunction(name string) *Function {
	for cls := c; cls != nil; cls = cls.super {
		if fn := cls.LookupFunction(name); fn != nil && !fn.IsStatic {
			return fn
		}
	}
	return nil
}

// EnsureIsFinalized computes the instance layout: instance fields get
// offsets after all inherited fields, superclasses first. Fails while the
// isolate has class finalization blocked (during the reload parse step).
func (c *Class) EnsureIsFinalized(iso *Isolate) error {
	if c.state == stateFinalized {
		return nil
	}
	if iso.finalizationBlocked() {
		return fmt.Errorf("vm: class finalization blocked during reload of %s", c.Name)
	}
	offset := 0
	if c.super != nil {
		if err := c.super.EnsureIsFinalized(iso); err != nil {
			return err
		}
		offset = c.super.instanceSize
	}
	for _, f := range c.fields {
		if f.IsStatic {
			continue
		}
		f.offset = offset
		offset++
	}
	c.instanceSize = offset
	c.state = stateFinalized
	return nil
}

// OffsetToFieldMap returns instance field names indexed by slot offset,
// walking the superclass chain. Only valid on a finalized class.
func (c *Class) OffsetToFieldMap() []string {
	names := make([]string, c.instanceSize)
	for cls := c; cls != nil; cls = cls.super {
		for _, f := range cls.fields {
			if f.IsStatic {
				continue
			}
			names[f.offset] = f.Name
		}
	}
	return names
}

// IsSubclassOf walks the superclass chain.
func (c *Class) IsSubclassOf(other *Class) bool {
	for cls := c; cls != nil; cls = cls.super {
		if cls == other {
			return true
		}
	}
	return false
}

func (c *Class) String() string {
	if url := c.LibraryURL(); url != "" {
		return url + ":" + c.Name
	}
	return c.Name
}

func (c *Class) VisitPointers(visit PointerVisitor) {
	visitLibrarySlot(visit, &c.library)
	visitScriptSlot(visit, &c.script)
	visitClassSlot(visit, &c.super)
	for i := range c.fields {
		c.fields[i] = visit(c.fields[i]).(*Field)
	}
	for i := range c.functions {
		c.functions[i] = visit(c.functions[i]).(*Function)
	}
	visitValueSlice(visit, c.constants)
}

// ---------------------------------------------------------------------------
// ClassTable: class-id -> class
// ---------------------------------------------------------------------------

// ClassTable maps class ids to classes. Index 0 is illegal and index 1 is
// reserved for forwarding corpses; user classes start at firstUserCid.
// Class ids below the reload's saved_num_cids existed before the reload;
// ids at or above are candidates from the new program.
type ClassTable struct {
	mu      sync.RWMutex
	classes []*Class
}

func newClassTable() *ClassTable {
	return &ClassTable{classes: make([]*Class, firstUserCid)}
}

// NumCids returns the current table size (one past the highest id).
func (ct *ClassTable) NumCids() int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.classes)
}

// IsValidIndex reports whether i is inside the table.
func (ct *ClassTable) IsValidIndex(i ClassID) bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return i > illegalCid && int(i) < len(ct.classes)
}

// HasValidClassAt reports whether a class is registered at i.
func (ct *ClassTable) HasValidClassAt(i ClassID) bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return i > illegalCid && int(i) < len(ct.classes) && ct.classes[i] != nil
}

// At returns the class with id i, or nil.
func (ct *ClassTable) At(i ClassID) *Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	if i <= illegalCid || int(i) >= len(ct.classes) {
		return nil
	}
	return ct.classes[i]
}

// SetAt overwrites the slot at i. Used by rollback to restore the saved
// table.
func (ct *ClassTable) SetAt(i ClassID, cls *Class) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.classes[i] = cls
	if cls != nil {
		cls.id = i
	}
}

// Register assigns the next free id to cls and records it.
func (ct *ClassTable) Register(cls *Class) ClassID {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	id := ClassID(len(ct.classes))
	cls.id = id
	ct.classes = append(ct.classes, cls)
	return id
}

// ReplaceClass installs new at old's id so the id stays stable for every
// existing instance. The caller is responsible for retiring new's former
// slot.
func (ct *ClassTable) ReplaceClass(old, new *Class) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	id := old.id
	new.id = id
	ct.classes[id] = new
}

// MoveClass moves the class at src down into the free slot at dest,
// updating its id. Used by class-table compaction.
func (ct *ClassTable) MoveClass(dest, src ClassID) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	cls := ct.classes[src]
	cls.id = dest
	ct.classes[dest] = cls
	ct.classes[src] = nil
}

// DropNewClasses trims the table to upto entries.
func (ct *ClassTable) DropNewClasses(upto int) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if upto < int(firstUserCid) {
		panic("vm: DropNewClasses below reserved cids")
	}
	ct.classes = ct.classes[:upto]
}

// snapshot copies the table contents. The copy must be treated as a GC
// root for as long as it is retained.
func (ct *ClassTable) snapshot() []*Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	saved := make([]*Class, len(ct.classes))
	copy(saved, ct.classes)
	return saved
}
