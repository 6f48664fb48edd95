package vm

// NativeEntry is a compiled function body. The engine has no bytecode
// compiler of its own; bodies are native Go functions, the same shape as
// primitive methods.
type NativeEntry func(iso *Isolate, args []Value) Value

// CallSiteKind distinguishes the call-site descriptor kinds the IC reset
// pass cares about.
type CallSiteKind uint8

const (
	SiteICCall CallSiteKind = iota
	SiteUnoptStaticCall
)

// CallSiteDesc declares one call site inside a function body. Building
// unoptimized code materializes an ICData per declared site.
type CallSiteDesc struct {
	Selector      string
	NumArgsTested int
	Kind          CallSiteKind
}

// ---------------------------------------------------------------------------
// Function
// ---------------------------------------------------------------------------

// Function is a callable: an entry body, current code, per-site inline
// cache data, and the counters the optimizer feeds on.
type Function struct {
	ObjectHeader

	Name     string
	IsStatic bool

	// owner is the declaring *Class, or a *PatchRecord once the class has
	// been replaced by a reload.
	owner Object

	entry NativeEntry
	sites []CallSiteDesc

	code        *Code // current code: stub, unoptimized, or optimized
	unoptimized *Code

	icData []*ICData // indexed by call-site id; nil after ClearICDataArray

	edgeCounters []int64
	usageCounter int64

	deoptimizationCounter     int64
	optimizedInstructionCount int64
	optimizedCallSiteCount    int64
}

// NewFunction allocates a function whose current code is the lazy-compile
// stub. Sites declare the function's call sites; edge counters get one
// slot per site.
func (iso *Isolate) NewFunction(name string, isStatic bool, entry NativeEntry, sites ...CallSiteDesc) *Function {
	fn := &Function{
		Name:     name,
		IsStatic: isStatic,
		entry:    entry,
		sites:    sites,
	}
	iso.heap.allocate(fn, KindFunction, 10+len(sites), GenOld)
	fn.code = iso.lazyCompileStub
	fn.edgeCounters = make([]int64, len(sites))
	return fn
}

// Owner returns the declaring class, resolving through a patch record.
func (fn *Function) Owner() *Class {
	switch o := fn.owner.(type) {
	case *Class:
		return o
	case *PatchRecord:
		return o.PatchedClass
	}
	return nil
}

// RawOwner returns the owner object without patch-record resolution.
func (fn *Function) RawOwner() Object { return fn.owner }

// setOwner reparents the function. Used when a class adopts a function and
// when old functions move onto a patch record.
func (fn *Function) setOwner(o Object) { fn.owner = o }

// CurrentCode returns the code that will run on the next invocation.
func (fn *Function) CurrentCode() *Code { return fn.code }

// UnoptimizedCode returns the compiled unoptimized code, or nil.
func (fn *Function) UnoptimizedCode() *Code { return fn.unoptimized }

// HasCode reports whether the function has real (non-stub) current code.
func (fn *Function) HasCode() bool { return fn.code != nil && !fn.code.IsStub() }

// EnsureHasCompiledUnoptimizedCode compiles unoptimized code if the
// function has none, and makes it current when the current code is the
// stub.
func (fn *Function) EnsureHasCompiledUnoptimizedCode(iso *Isolate) {
	if fn.unoptimized == nil {
		fn.unoptimized = iso.newUnoptimizedCode(fn)
	}
	if fn.icData == nil {
		fn.icData = fn.unoptimized.materializeICData(iso)
	}
	if fn.code == nil || fn.code.IsStub() {
		fn.code = fn.unoptimized
	}
}

// SwitchToLazyCompiledUnoptimizedCode makes the unoptimized code current,
// or the lazy-compile stub if none has been compiled.
func (fn *Function) SwitchToLazyCompiledUnoptimizedCode(iso *Isolate) {
	if fn.unoptimized != nil {
		fn.code = fn.unoptimized
	} else {
		fn.code = iso.lazyCompileStub
	}
}

// ClearCode drops current and unoptimized code; the function falls back to
// the lazy-compile stub.
func (fn *Function) ClearCode(iso *Isolate) {
	fn.code = iso.lazyCompileStub
	fn.unoptimized = nil
}

// ClearICDataArray drops all IC data.
func (fn *Function) ClearICDataArray() { fn.icData = nil }

// FillICDataWithSentinels clears every IC site to the sentinel state so no
// stale type feedback survives, while the unoptimized code itself is kept.
func (fn *Function) FillICDataWithSentinels() {
	for _, ic := range fn.icData {
		if ic != nil {
			ic.fillWithSentinel()
		}
	}
}

// ICDataArray returns the function's IC data, indexed by call-site id.
func (fn *Function) ICDataArray() []*ICData { return fn.icData }

// ZeroEdgeCounters zeroes the per-site edge counters.
func (fn *Function) ZeroEdgeCounters() {
	for i := range fn.edgeCounters {
		fn.edgeCounters[i] = 0
	}
}

// EdgeCounter returns the edge counter for a site.
func (fn *Function) EdgeCounter(site int) int64 { return fn.edgeCounters[site] }

// SetUsageCounter sets the invocation counter the optimizer watches.
func (fn *Function) SetUsageCounter(n int64) { fn.usageCounter = n }

// UsageCounter returns the invocation counter.
func (fn *Function) UsageCounter() int64 { return fn.usageCounter }

// SetDeoptimizationCounter sets the deopt counter.
func (fn *Function) SetDeoptimizationCounter(n int64) { fn.deoptimizationCounter = n }

// SetOptimizedInstructionCount sets the optimizer's instruction estimate.
func (fn *Function) SetOptimizedInstructionCount(n int64) { fn.optimizedInstructionCount = n }

// SetOptimizedCallSiteCount sets the optimizer's call-site estimate.
func (fn *Function) SetOptimizedCallSiteCount(n int64) { fn.optimizedCallSiteCount = n }

func (fn *Function) VisitPointers(visit PointerVisitor) {
	if fn.owner != nil {
		fn.owner = visit(fn.owner).(Object)
	}
	visitCodeSlot(visit, &fn.code)
	visitCodeSlot(visit, &fn.unoptimized)
	for i := range fn.icData {
		if fn.icData[i] != nil {
			fn.icData[i] = visit(fn.icData[i]).(*ICData)
		}
	}
}

// ---------------------------------------------------------------------------
// Code
// ---------------------------------------------------------------------------

// PcDescKind tags entries in a code object's PC descriptor table.
type PcDescKind uint8

const (
	PcDescICCall PcDescKind = iota
	PcDescUnoptStaticCall
	PcDescOther
)

// PcDescriptor associates a call-site (deopt) id inside the code with the
// kind of call emitted there.
type PcDescriptor struct {
	DeoptID int
	Kind    PcDescKind
}

// Code is a compiled code body. Optimized code references its associated
// unoptimized code through the object pool, which is where the IC reset
// pass finds the code that resumes after deoptimization.
type Code struct {
	ObjectHeader

	function  *Function
	optimized bool
	stub      bool

	entry NativeEntry

	objectPool    []Value
	pcDescriptors []PcDescriptor
}

// newUnoptimizedCode compiles (wraps) the function's native entry as
// unoptimized code with one PC descriptor per declared call site.
func (iso *Isolate) newUnoptimizedCode(fn *Function) *Code {
	c := &Code{function: fn, entry: fn.entry}
	for i, site := range fn.sites {
		kind := PcDescICCall
		if site.Kind == SiteUnoptStaticCall {
			kind = PcDescUnoptStaticCall
		}
		c.pcDescriptors = append(c.pcDescriptors, PcDescriptor{DeoptID: i, Kind: kind})
	}
	iso.heap.allocate(c, KindCode, 6+len(fn.sites), GenOld)
	return c
}

// materializeICData builds one ICData per declared call site.
func (c *Code) materializeICData(iso *Isolate) []*ICData {
	fn := c.function
	icData := make([]*ICData, len(fn.sites))
	for i, site := range fn.sites {
		icData[i] = iso.newICData(fn, i, site)
	}
	return icData
}

// NewOptimizedCode compiles the function's entry as optimized code. The
// object pool holds the unoptimized code (compiling it first if needed)
// plus any extra pool entries, mirroring how a real deopt table refers
// back to the code that finishes the activation.
func (iso *Isolate) NewOptimizedCode(fn *Function, poolExtras ...Value) *Code {
	fn.EnsureHasCompiledUnoptimizedCode(iso)
	c := &Code{function: fn, optimized: true, entry: fn.entry}
	c.objectPool = append(c.objectPool, fn.unoptimized)
	c.objectPool = append(c.objectPool, poolExtras...)
	c.pcDescriptors = append(c.pcDescriptors, fn.unoptimized.pcDescriptors...)
	iso.heap.allocate(c, KindCode, 6+len(c.objectPool), GenOld)
	fn.code = c
	return c
}

// Function returns the owning function; nil for stubs.
func (c *Code) Function() *Function { return c.function }

// IsOptimized reports whether this is optimized code.
func (c *Code) IsOptimized() bool { return c.optimized }

// IsStub reports whether this is the lazy-compile stub.
func (c *Code) IsStub() bool { return c.stub }

// ObjectPool returns the code's object pool.
func (c *Code) ObjectPool() []Value { return c.objectPool }

// PcDescriptors returns the code's PC descriptor table.
func (c *Code) PcDescriptors() []PcDescriptor { return c.pcDescriptors }

func (c *Code) VisitPointers(visit PointerVisitor) {
	visitFunctionSlot(visit, &c.function)
	visitValueSlice(visit, c.objectPool)
}
