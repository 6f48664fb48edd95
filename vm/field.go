package vm

// Field is a declared field: instance fields carry a slot offset assigned
// at finalization, static fields carry their value directly. A field is
// identified structurally by (name, owning class, is-static).
type Field struct {
	ObjectHeader

	Name     string
	IsStatic bool

	// owner is the declaring *Class, or a *PatchRecord after the class was
	// replaced in a reload.
	owner Object

	offset      int
	staticValue Value
}

// NewField allocates a field in old space. The owner is assigned when the
// field is added to a class.
func (iso *Isolate) NewField(name string, isStatic bool) *Field {
	f := &Field{Name: name, IsStatic: isStatic, staticValue: Nil}
	iso.heap.allocate(f, KindField, 4, GenOld)
	return f
}

// Owner returns the declaring class, resolving through a patch record if
// the declaring class was replaced.
func (f *Field) Owner() *Class {
	switch o := f.owner.(type) {
	case *Class:
		return o
	case *PatchRecord:
		return o.PatchedClass
	}
	return nil
}

// Offset returns the instance slot offset. Only meaningful for instance
// fields of a finalized class.
func (f *Field) Offset() int { return f.offset }

// StaticValue returns the static value. Panics on an instance field.
func (f *Field) StaticValue() Value {
	if !f.IsStatic {
		panic("vm: StaticValue on an instance field")
	}
	return f.staticValue
}

// SetStaticValue stores the static value. Panics on an instance field.
func (f *Field) SetStaticValue(v Value) {
	if !f.IsStatic {
		panic("vm: SetStaticValue on an instance field")
	}
	f.staticValue = v
}

func (f *Field) VisitPointers(visit PointerVisitor) {
	if f.owner != nil {
		f.owner = visit(f.owner).(Object)
	}
	if f.IsStatic {
		visitValueSlot(visit, &f.staticValue)
	}
}
