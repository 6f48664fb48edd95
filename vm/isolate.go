package vm

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Object store
// ---------------------------------------------------------------------------

// objectStore holds the isolate's well-known roots.
type objectStore struct {
	rootLibrary *Library
	libraries   []*Library

	canonicalTypeArgs *canonicalTypeTable
	megamorphicCache  *MegamorphicCache

	// compileTimeConstants caches constant expressions keyed by source
	// position; cleared at reload checkpoint because the values were
	// evaluated against the old program.
	compileTimeConstants map[string]Value
}

func (os *objectStore) visitPointers(visit PointerVisitor) {
	if os.rootLibrary != nil {
		os.rootLibrary = visit(os.rootLibrary).(*Library)
	}
	for i := range os.libraries {
		os.libraries[i] = visit(os.libraries[i]).(*Library)
	}
	if os.canonicalTypeArgs != nil {
		os.canonicalTypeArgs.visitPointers(visit)
	}
	if os.megamorphicCache != nil {
		os.megamorphicCache.visitPointers(visit)
	}
	for k, v := range os.compileTimeConstants {
		if v != nil {
			os.compileTimeConstants[k] = visit(v)
		}
	}
}

// ---------------------------------------------------------------------------
// Library tag handler
// ---------------------------------------------------------------------------

// LibraryTag identifies what the tag handler is being asked to load.
type LibraryTag int

const (
	// TagScript asks the handler to (re)load the whole program rooted at
	// the given URL.
	TagScript LibraryTag = iota
	// TagImport asks the handler to load a single imported library.
	TagImport
)

// LibraryTagHandler loads program source into the isolate. It is the
// external parser's entry point: during a reload it registers the new
// program's libraries and classes against the isolate and returns an
// error if parsing fails.
type LibraryTagHandler func(iso *Isolate, tag LibraryTag, url string) error

// ---------------------------------------------------------------------------
// Isolate
// ---------------------------------------------------------------------------

// Isolate is a self-contained runtime instance: heap, class table, library
// list, object store, and stack. At most one reload may be active per
// isolate.
type Isolate struct {
	ID string

	heap       *Heap
	classTable *ClassTable
	store      *objectStore

	stack []*Frame

	flags      *Flags
	tagHandler LibraryTagHandler

	// Reload machinery.
	reloadMu      sync.Mutex
	reloadContext *ReloadContext
	history       *ReloadHistory

	events chan *ServiceEvent

	bgCompiler *BackgroundCompiler

	// Safepoint bookkeeping: inSafepoint is set for the duration of a
	// safepoint operation; noSafepointDepth asserts scopes that must not
	// reach a safepoint.
	safepointMu      sync.Mutex
	inSafepoint      bool
	noSafepointDepth int

	finalizationBlockDepth int

	// Bootstrap entities.
	coreLibrary     *Library
	smiClass        *Class
	lazyCompileStub *Code

	stackOverflowChecks int64
}

// NewIsolate creates an isolate with its runtime core library bootstrapped
// and default flags.
func NewIsolate() *Isolate {
	return NewIsolateWithFlags(DefaultFlags())
}

// NewIsolateWithFlags creates an isolate with the given flags.
func NewIsolateWithFlags(flags *Flags) *Isolate {
	iso := &Isolate{
		ID:         uuid.NewString(),
		heap:       newHeap(),
		classTable: newClassTable(),
		store: &objectStore{
			canonicalTypeArgs:    newCanonicalTypeTable(),
			megamorphicCache:     newMegamorphicCache(),
			compileTimeConstants: make(map[string]Value),
		},
		flags:      flags,
		events:     make(chan *ServiceEvent, 16),
		bgCompiler: newBackgroundCompiler(),
	}
	iso.bootstrap()
	return iso
}

// bootstrap installs the lazy-compile stub and the runtime core library
// with the Smi class the IC fast path needs.
func (iso *Isolate) bootstrap() {
	iso.lazyCompileStub = &Code{stub: true}
	iso.heap.allocateInternal(iso.lazyCompileStub, KindCode, 4)

	core := iso.newLibrary(RuntimeScheme + "core")
	core.Header().internal = true
	core.toplevel.Header().internal = true
	iso.store.libraries = append(iso.store.libraries, core)
	core.SetIndex(0)
	iso.coreLibrary = core

	smi := iso.NewClass("Smi", core, core.toplevel.script)
	smi.Header().internal = true
	iso.classTable.Register(smi)
	smi.AddFunction(iso.smiBinaryOp("+", func(a, b int64) Value { return SmallInt(a + b) }))
	smi.AddFunction(iso.smiBinaryOp("-", func(a, b int64) Value { return SmallInt(a - b) }))
	smi.AddFunction(iso.smiBinaryOp("==", func(a, b int64) Value { return Boolean(a == b) }))
	if err := smi.EnsureIsFinalized(iso); err != nil {
		panic(fmt.Sprintf("vm: bootstrap: %v", err))
	}
	iso.smiClass = smi
}

func (iso *Isolate) smiBinaryOp(name string, op func(a, b int64) Value) *Function {
	fn := iso.NewFunction(name, false, func(_ *Isolate, args []Value) Value {
		a, aok := args[0].(SmallInt)
		b, bok := args[1].(SmallInt)
		if !aok || !bok {
			return Nil
		}
		return op(int64(a), int64(b))
	})
	fn.Header().internal = true
	return fn
}

// Heap returns the isolate's heap.
func (iso *Isolate) Heap() *Heap { return iso.heap }

// ClassTable returns the isolate's class table.
func (iso *Isolate) ClassTable() *ClassTable { return iso.classTable }

// Flags returns the isolate's flags.
func (iso *Isolate) Flags() *Flags { return iso.flags }

// SmiClass returns the runtime small-integer class.
func (iso *Isolate) SmiClass() *Class { return iso.smiClass }

// CoreLibrary returns the runtime core library.
func (iso *Isolate) CoreLibrary() *Library { return iso.coreLibrary }

// MegamorphicCache returns the current megamorphic cache table.
func (iso *Isolate) MegamorphicCache() *MegamorphicCache {
	return iso.store.megamorphicCache
}

// SetLibraryTagHandler installs the external source-load callback.
func (iso *Isolate) SetLibraryTagHandler(h LibraryTagHandler) { iso.tagHandler = h }

// SetReloadHistory attaches an optional reload journal.
func (iso *Isolate) SetReloadHistory(h *ReloadHistory) { iso.history = h }

// ---------------------------------------------------------------------------
// Libraries
// ---------------------------------------------------------------------------

// RegisterLibrary creates a library with the given URL, appends it to the
// live library list, and returns it. During a reload's parse step this is
// how the new program's libraries arrive.
func (iso *Isolate) RegisterLibrary(url string) *Library {
	lib := iso.newLibrary(url)
	lib.SetIndex(len(iso.store.libraries))
	iso.store.libraries = append(iso.store.libraries, lib)
	return lib
}

// RegisterClass assigns cls a class id and owner library membership is
// already set; returns the id.
func (iso *Isolate) RegisterClass(cls *Class) ClassID {
	return iso.classTable.Register(cls)
}

// Libraries returns the live library list.
func (iso *Isolate) Libraries() []*Library { return iso.store.libraries }

// RootLibrary returns the program's root library.
func (iso *Isolate) RootLibrary() *Library { return iso.store.rootLibrary }

// SetRootLibrary sets the program's root library.
func (iso *Isolate) SetRootLibrary(lib *Library) { iso.store.rootLibrary = lib }

// LookupLibrary finds a live library by URL, or nil.
func (iso *Isolate) LookupLibrary(url string) *Library {
	for _, lib := range iso.store.libraries {
		if lib.URL == url {
			return lib
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Class finalization gate
// ---------------------------------------------------------------------------

// BlockClassFinalization prevents class finalization until the matching
// unblock. Held across the reload's call into the library tag handler.
func (iso *Isolate) BlockClassFinalization() { iso.finalizationBlockDepth++ }

// UnblockClassFinalization releases a finalization block.
func (iso *Isolate) UnblockClassFinalization() {
	if iso.finalizationBlockDepth == 0 {
		panic("vm: unbalanced UnblockClassFinalization")
	}
	iso.finalizationBlockDepth--
}

func (iso *Isolate) finalizationBlocked() bool { return iso.finalizationBlockDepth > 0 }

// ---------------------------------------------------------------------------
// Safepoints
// ---------------------------------------------------------------------------

// SafepointOperation quiesces mutators and runs fn with the world stopped.
// No allocation or collection may occur inside fn's no-safepoint sections.
func (iso *Isolate) SafepointOperation(fn func()) {
	if iso.noSafepointDepth > 0 {
		panic("vm: safepoint operation inside a no-safepoint scope")
	}
	iso.safepointMu.Lock()
	iso.inSafepoint = true
	defer func() {
		iso.inSafepoint = false
		iso.safepointMu.Unlock()
	}()
	fn()
}

// beginNoSafepoint opens a scope in which reaching a safepoint would be an
// engine bug.
func (iso *Isolate) beginNoSafepoint() { iso.noSafepointDepth++ }

func (iso *Isolate) endNoSafepoint() {
	if iso.noSafepointDepth == 0 {
		panic("vm: unbalanced no-safepoint scope")
	}
	iso.noSafepointDepth--
}

// ---------------------------------------------------------------------------
// Root scanning
// ---------------------------------------------------------------------------

// VisitObjectPointers applies visit to every root slot of the isolate: the
// object store, the class table, every stack frame, and — while a reload
// is in progress — the reload context's saved class table and library
// list.
func (iso *Isolate) VisitObjectPointers(visit PointerVisitor) {
	iso.store.visitPointers(visit)

	iso.classTable.mu.Lock()
	for i, cls := range iso.classTable.classes {
		if cls != nil {
			iso.classTable.classes[i] = visit(cls).(*Class)
		}
	}
	iso.classTable.mu.Unlock()

	for _, frame := range iso.stack {
		frame.visitPointers(visit)
	}

	if iso.reloadContext != nil {
		iso.reloadContext.visitObjectPointers(visit)
	}
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

// ClassOf returns the class of a value: immediates map to runtime classes,
// instances resolve through the class table.
func (iso *Isolate) ClassOf(v Value) *Class {
	switch val := v.(type) {
	case SmallInt:
		return iso.smiClass
	case *Instance:
		return iso.classTable.At(val.ClassID())
	case Object:
		return nil
	}
	return nil
}

// Invoke resolves a top-level function visible from the root library and
// calls it.
func (iso *Isolate) Invoke(name string, args ...Value) (Value, error) {
	root := iso.store.rootLibrary
	if root == nil {
		return Nil, fmt.Errorf("vm: no root library")
	}
	fn := root.ResolveFunction(name)
	if fn == nil {
		return Nil, fmt.Errorf("vm: no such function %q in %s", name, root.URL)
	}
	return iso.InvokeFunction(fn, args...)
}

// InvokeFunction pushes a frame and runs fn. The lazy-compile stub
// compiles unoptimized code on first entry.
func (iso *Isolate) InvokeFunction(fn *Function, args ...Value) (Value, error) {
	code := fn.CurrentCode()
	if code == nil || code.IsStub() {
		fn.EnsureHasCompiledUnoptimizedCode(iso)
		code = fn.CurrentCode()
	}
	if code.entry == nil {
		return Nil, fmt.Errorf("vm: function %q has no executable body", fn.Name)
	}
	frame := &Frame{function: fn, code: code}
	iso.pushFrame(frame)
	defer iso.popFrame()
	fn.usageCounter++
	return code.entry(iso, args), nil
}

// CallDynamic dispatches a dynamic call from the given site of caller,
// consulting and updating the site's inline cache, with the megamorphic
// cache as overflow.
func (iso *Isolate) CallDynamic(caller *Function, site int, receiver Value, args ...Value) (Value, error) {
	ic := iso.icAt(caller, site)
	cids := []ClassID{iso.classIDOf(receiver)}
	if ic.NumArgsTested == 2 && len(args) > 0 {
		cids = append(cids, iso.classIDOf(args[0]))
	}
	caller.edgeCounters[site]++

	target := ic.Lookup(cids)
	if target == nil {
		cls := iso.ClassOf(receiver)
		if cls == nil {
			return Nil, fmt.Errorf("vm: dynamic call %q on classless receiver", ic.Selector)
		}
		target = iso.store.megamorphicCache.Lookup(cls.ID(), ic.Selector)
		if target == nil {
			target = cls.LookupDynamicFunction(ic.Selector)
		}
		if target == nil {
			return Nil, fmt.Errorf("vm: %s does not understand %q", cls.Name, ic.Selector)
		}
		ic.AddCheck(cids, target)
		iso.store.megamorphicCache.Insert(cls.ID(), ic.Selector, target)
	}
	return iso.InvokeFunction(target, append([]Value{receiver}, args...)...)
}

// CallStatic dispatches a static call from the given site of caller. The
// target is resolved once and bound into the site's IC; after a reload the
// IC reset pass re-resolves it.
func (iso *Isolate) CallStatic(caller *Function, site int, args ...Value) (Value, error) {
	ic := iso.icAt(caller, site)
	caller.edgeCounters[site]++

	target := ic.GetTargetAt(0)
	if target == nil {
		target = iso.resolveStatic(caller, ic.Selector)
		if target == nil {
			return Nil, fmt.Errorf("vm: unresolved static call %q from %s", ic.Selector, caller.Name)
		}
		ic.AddTarget(target)
	}
	return iso.InvokeFunction(target, args...)
}

func (iso *Isolate) resolveStatic(caller *Function, selector string) *Function {
	cls := caller.Owner()
	if cls == nil {
		return nil
	}
	if fn := cls.LookupStaticFunction(selector); fn != nil {
		return fn
	}
	if cls.library != nil {
		if fn := cls.library.ResolveFunction(selector); fn != nil && fn.IsStatic {
			return fn
		}
	}
	return nil
}

func (iso *Isolate) icAt(fn *Function, site int) *ICData {
	fn.EnsureHasCompiledUnoptimizedCode(iso)
	if site < 0 || site >= len(fn.icData) || fn.icData[site] == nil {
		panic(fmt.Sprintf("vm: function %q has no call site %d", fn.Name, site))
	}
	return fn.icData[site]
}

func (iso *Isolate) classIDOf(v Value) ClassID {
	cls := iso.ClassOf(v)
	if cls == nil {
		return illegalCid
	}
	return cls.ID()
}

// ---------------------------------------------------------------------------
// Stack-overflow-check reload trigger
// ---------------------------------------------------------------------------

// MaybeReloadFromStackOverflowCheck is a fuzzing aid: called from the
// interpreter's stack overflow check, it triggers a reload of the root
// library every reload_every_N checks, optionally only when the top frame
// runs optimized code.
func (iso *Isolate) MaybeReloadFromStackOverflowCheck() error {
	if iso.flags.ReloadEveryN <= 0 {
		return nil
	}
	iso.stackOverflowChecks++
	if iso.stackOverflowChecks%int64(iso.flags.ReloadEveryN) != 0 {
		return nil
	}
	if iso.flags.ReloadEveryOptimized {
		if len(iso.stack) == 0 {
			return nil
		}
		top := iso.stack[len(iso.stack)-1]
		if top.code == nil || !top.code.IsOptimized() {
			return nil
		}
	}
	root := iso.store.rootLibrary
	if root == nil {
		return nil
	}
	return iso.Reload(root.URL)
}

// ---------------------------------------------------------------------------
// Background compiler gate
// ---------------------------------------------------------------------------

// BackgroundCompiler gates the optimizing compiler worker. The reload
// driver disables it across FinishReload so no optimized code is produced
// against a class topology that is about to change.
type BackgroundCompiler struct {
	mu       sync.Mutex
	disabled int
}

func newBackgroundCompiler() *BackgroundCompiler {
	return &BackgroundCompiler{}
}

// Disable stops background compilation until the matching Enable.
func (bc *BackgroundCompiler) Disable() {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.disabled++
}

// Enable releases one Disable.
func (bc *BackgroundCompiler) Enable() {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if bc.disabled == 0 {
		panic("vm: unbalanced BackgroundCompiler.Enable")
	}
	bc.disabled--
}

// IsEnabled reports whether background compilation may run.
func (bc *BackgroundCompiler) IsEnabled() bool {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.disabled == 0
}

// BackgroundCompiler returns the isolate's compiler gate.
func (iso *Isolate) BackgroundCompiler() *BackgroundCompiler { return iso.bgCompiler }
