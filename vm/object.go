package vm

// ---------------------------------------------------------------------------
// Heap object model
// ---------------------------------------------------------------------------

// ClassID is an index into the isolate's class table. The class id is
// embedded in every instance header; instances never hold a direct class
// pointer, which is what lets a reload replace a class at a stable id
// without touching its instances.
type ClassID int

// Reserved class ids. Valid user class ids start at firstUserCid.
const (
	// illegalCid is never a valid table index.
	illegalCid ClassID = 0
	// corpseCid is reserved for forwarding corpses and never holds a class;
	// corpses themselves are marked by their header's corpse flag.
	// Runtime-internal: never in the old-class set and never itself forwarded.
	corpseCid ClassID = 1

	firstUserCid ClassID = 2
)

// ObjectKind identifies the shape of a heap object.
type ObjectKind uint8

const (
	KindInstance ObjectKind = iota
	KindClass
	KindLibrary
	KindField
	KindFunction
	KindCode
	KindScript
	KindPatchRecord
	KindArray
	KindICData
)

func (k ObjectKind) String() string {
	switch k {
	case KindInstance:
		return "Instance"
	case KindClass:
		return "Class"
	case KindLibrary:
		return "Library"
	case KindField:
		return "Field"
	case KindFunction:
		return "Function"
	case KindCode:
		return "Code"
	case KindScript:
		return "Script"
	case KindPatchRecord:
		return "PatchRecord"
	case KindArray:
		return "Array"
	case KindICData:
		return "ICData"
	}
	return "?"
}

// Generation tags a heap object as old-space or young-space. The forwarder
// rejects old->young forwards because they would need a store-buffer update
// that is not implemented here.
type Generation uint8

const (
	GenOld Generation = iota
	GenYoung
)

// ObjectHeader is embedded in every heap object. When an object is retired
// by the forwarder the header becomes a forwarding corpse: the corpse flag
// is set, the kind and the original size in words are retained so the heap
// stays iterable, and next holds the replacement. Following a forward is a
// single load of next; chains are prohibited.
type ObjectHeader struct {
	kind      ObjectKind
	gen       Generation
	sizeWords int
	internal  bool // runtime-internal object, never forwarded

	corpse bool
	next   Object // replacement, valid only when corpse
}

func (h *ObjectHeader) isValue() {}

// Header returns the embedded header; every heap object shares this.
func (h *ObjectHeader) Header() *ObjectHeader { return h }

// Kind returns the object's shape.
func (h *ObjectHeader) Kind() ObjectKind { return h.kind }

// Gen returns the object's generation.
func (h *ObjectHeader) Gen() Generation { return h.gen }

// SizeWords returns the object's size in words. The size recorded at
// allocation survives corpse conversion.
func (h *ObjectHeader) SizeWords() int { return h.sizeWords }

// IsCorpse reports whether this object has been retired to a forwarding
// corpse.
func (h *ObjectHeader) IsCorpse() bool { return h.corpse }

// IsInternal reports whether this is a runtime-internal object.
func (h *ObjectHeader) IsInternal() bool { return h.internal }

// ForwardingTarget returns the replacement object. Only valid on a corpse.
func (h *ObjectHeader) ForwardingTarget() Object {
	if !h.corpse {
		panic("vm: ForwardingTarget on a live object")
	}
	return h.next
}

// becomeCorpse retires the object in place. The size is already recorded
// in the header, so heap walkers can still step over it.
func (h *ObjectHeader) becomeCorpse(next Object) {
	h.corpse = true
	h.next = next
}

// PointerVisitor visits one reference slot and returns the value the slot
// should hold afterwards. Visitors that only read return their argument.
type PointerVisitor func(v Value) Value

// Object is implemented by every heap-allocated entity. VisitPointers must
// apply the visitor to every reference slot the object holds and store the
// result back, so the forwarder can rewrite the full object graph.
type Object interface {
	Value
	Header() *ObjectHeader
	VisitPointers(visit PointerVisitor)
}

// ---------------------------------------------------------------------------
// Typed slot visit helpers
// ---------------------------------------------------------------------------

// The forwarder only ever replaces an object with another object of the
// same kind, so these narrowing helpers are safe on every reload path.

func visitClassSlot(visit PointerVisitor, slot **Class) {
	if *slot == nil {
		return
	}
	*slot = visit(*slot).(*Class)
}

func visitLibrarySlot(visit PointerVisitor, slot **Library) {
	if *slot == nil {
		return
	}
	*slot = visit(*slot).(*Library)
}

func visitFieldSlot(visit PointerVisitor, slot **Field) {
	if *slot == nil {
		return
	}
	*slot = visit(*slot).(*Field)
}

func visitFunctionSlot(visit PointerVisitor, slot **Function) {
	if *slot == nil {
		return
	}
	*slot = visit(*slot).(*Function)
}

func visitCodeSlot(visit PointerVisitor, slot **Code) {
	if *slot == nil {
		return
	}
	*slot = visit(*slot).(*Code)
}

func visitScriptSlot(visit PointerVisitor, slot **Script) {
	if *slot == nil {
		return
	}
	*slot = visit(*slot).(*Script)
}

func visitValueSlot(visit PointerVisitor, slot *Value) {
	if *slot == nil {
		return
	}
	*slot = visit(*slot)
}

func visitValueSlice(visit PointerVisitor, slots []Value) {
	for i := range slots {
		if slots[i] != nil {
			slots[i] = visit(slots[i])
		}
	}
}

// ---------------------------------------------------------------------------
// Script
// ---------------------------------------------------------------------------

// Script records the source a class or function was compiled from. Old
// functions keep their script through a patch record so debuggers and
// surviving closures stay well-formed after a reload.
type Script struct {
	ObjectHeader
	URL    string
	Source string
}

func (s *Script) VisitPointers(visit PointerVisitor) {}

// ---------------------------------------------------------------------------
// PatchRecord
// ---------------------------------------------------------------------------

// PatchRecord is the synthetic owner attached to a replaced class's old
// functions and fields. It binds them to the class that was replaced and
// to their original script.
type PatchRecord struct {
	ObjectHeader
	PatchedClass *Class
	Script       *Script
}

func (p *PatchRecord) VisitPointers(visit PointerVisitor) {
	visitClassSlot(visit, &p.PatchedClass)
	visitScriptSlot(visit, &p.Script)
}

// ---------------------------------------------------------------------------
// Instance
// ---------------------------------------------------------------------------

// Instance is an ordinary object: a class id plus field slots. The class
// pointer is recovered through the class table, or through the saved class
// table while a reload is in progress (GetClassForHeapWalkAt).
type Instance struct {
	ObjectHeader
	cid   ClassID
	slots []Value
}

// NewInstance allocates an instance of cls in the isolate's heap with all
// slots nil.
func (iso *Isolate) NewInstance(cls *Class) *Instance {
	inst := &Instance{cid: cls.id, slots: make([]Value, cls.InstanceSize())}
	for i := range inst.slots {
		inst.slots[i] = Nil
	}
	iso.heap.allocate(inst, KindInstance, 2+len(inst.slots), GenYoung)
	return inst
}

// ClassID returns the instance's class id.
func (inst *Instance) ClassID() ClassID { return inst.cid }

// GetField returns the slot at the given offset.
func (inst *Instance) GetField(offset int) Value { return inst.slots[offset] }

// SetField stores a value at the given offset.
func (inst *Instance) SetField(offset int, v Value) { inst.slots[offset] = v }

// NumFields returns the number of field slots.
func (inst *Instance) NumFields() int { return len(inst.slots) }

func (inst *Instance) VisitPointers(visit PointerVisitor) {
	visitValueSlice(visit, inst.slots)
}

// ---------------------------------------------------------------------------
// Array
// ---------------------------------------------------------------------------

// Array is a fixed-length heap array of values.
type Array struct {
	ObjectHeader
	Elements []Value
}

// NewArray allocates an array of length n in old space with all elements
// nil.
func (iso *Isolate) NewArray(n int) *Array {
	arr := &Array{Elements: make([]Value, n)}
	for i := range arr.Elements {
		arr.Elements[i] = Nil
	}
	iso.heap.allocate(arr, KindArray, 1+n, GenOld)
	return arr
}

// Len returns the array length.
func (a *Array) Len() int { return len(a.Elements) }

func (a *Array) VisitPointers(visit PointerVisitor) {
	visitValueSlice(visit, a.Elements)
}
