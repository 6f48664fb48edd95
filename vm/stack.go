package vm

// ---------------------------------------------------------------------------
// Stack frames
// ---------------------------------------------------------------------------

// Frame is one activation on an isolate's stack. The frame iterator returns
// runtime frames (stub and native glue) too; the reload passes skip them by
// checking IsProgramFrame.
type Frame struct {
	function  *Function
	code      *Code
	isRuntime bool
}

// IsProgramFrame reports whether this frame executes program code.
func (f *Frame) IsProgramFrame() bool { return !f.isRuntime && f.function != nil }

// LookupFunction returns the function executing in this frame.
func (f *Frame) LookupFunction() *Function { return f.function }

// LookupCode returns the code executing in this frame.
func (f *Frame) LookupCode() *Code { return f.code }

// visitPointers visits the frame's function and code slots so the stack
// participates in root scanning.
func (f *Frame) visitPointers(visit PointerVisitor) {
	visitFunctionSlot(visit, &f.function)
	visitCodeSlot(visit, &f.code)
}

// FrameIterator walks an isolate's stack from the top frame down.
type FrameIterator struct {
	frames []*Frame
	next   int
}

// NewFrameIterator returns an iterator over the isolate's current stack.
func (iso *Isolate) NewFrameIterator() *FrameIterator {
	return &FrameIterator{frames: iso.stack, next: len(iso.stack) - 1}
}

// HasNext reports whether another frame remains.
func (it *FrameIterator) HasNext() bool { return it.next >= 0 }

// Next returns the next frame, top-of-stack first.
func (it *FrameIterator) Next() *Frame {
	f := it.frames[it.next]
	it.next--
	return f
}

func (iso *Isolate) pushFrame(f *Frame) {
	iso.stack = append(iso.stack, f)
}

func (iso *Isolate) popFrame() {
	iso.stack = iso.stack[:len(iso.stack)-1]
}

// ---------------------------------------------------------------------------
// Deoptimization
// ---------------------------------------------------------------------------

// DeoptimizeFunctionsOnStack switches every optimized frame back to the
// function's unoptimized code, the code the activation finishes in. The
// unoptimized code is located through the optimized code's object pool.
func (iso *Isolate) DeoptimizeFunctionsOnStack() {
	for _, frame := range iso.stack {
		if !frame.IsProgramFrame() {
			continue
		}
		code := frame.code
		if code == nil || !code.IsOptimized() {
			continue
		}
		fn := code.Function()
		unopt := unoptimizedFromPool(code)
		if unopt == nil {
			fn.EnsureHasCompiledUnoptimizedCode(iso)
			unopt = fn.unoptimized
		}
		frame.code = unopt
		if fn.code == code {
			fn.code = unopt
		}
		fn.deoptimizationCounter++
	}
}

// unoptimizedFromPool finds the unoptimized code for code's function in
// its object pool. It can differ from the function's current unoptimized
// code if the function has been recompiled since.
func unoptimizedFromPool(code *Code) *Code {
	fn := code.Function()
	for _, entry := range code.ObjectPool() {
		poolCode, ok := entry.(*Code)
		if !ok || poolCode.IsOptimized() {
			continue
		}
		if poolCode.Function() == fn {
			return poolCode
		}
	}
	return nil
}
