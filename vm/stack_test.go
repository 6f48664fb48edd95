package vm

import "testing"

// ---------------------------------------------------------------------------
// Frame and deoptimization tests
// ---------------------------------------------------------------------------

func TestFrameIteratorTopFirst(t *testing.T) {
	iso := newTestIsolate()
	outer := iso.NewFunction("outer", true, nil)
	inner := iso.NewFunction("inner", true, nil)
	outer.EnsureHasCompiledUnoptimizedCode(iso)
	inner.EnsureHasCompiledUnoptimizedCode(iso)
	iso.pushFrame(&Frame{function: outer, code: outer.CurrentCode()})
	iso.pushFrame(&Frame{function: inner, code: inner.CurrentCode()})
	iso.pushFrame(&Frame{isRuntime: true})

	it := iso.NewFrameIterator()
	if !it.HasNext() {
		t.Fatal("iterator should see frames")
	}
	first := it.Next()
	if first.IsProgramFrame() {
		t.Error("top frame is a runtime frame")
	}
	second := it.Next()
	if !second.IsProgramFrame() || second.LookupFunction() != inner {
		t.Error("second frame should be inner")
	}
	third := it.Next()
	if third.LookupFunction() != outer {
		t.Error("third frame should be outer")
	}
	if it.HasNext() {
		t.Error("iterator should be exhausted")
	}
}

func TestDeoptimizeFunctionsOnStack(t *testing.T) {
	iso := newTestIsolate()
	fn := iso.NewFunction("hot", true, func(*Isolate, []Value) Value { return Nil })
	fn.EnsureHasCompiledUnoptimizedCode(iso)
	unopt := fn.UnoptimizedCode()
	opt := iso.NewOptimizedCode(fn)

	frame := &Frame{function: fn, code: opt}
	iso.pushFrame(frame)
	defer iso.popFrame()

	iso.DeoptimizeFunctionsOnStack()

	if frame.LookupCode() != unopt {
		t.Error("frame should run the unoptimized code from the object pool")
	}
	if fn.CurrentCode() != unopt {
		t.Error("function's current code should fall back to unoptimized")
	}
}

func TestOptimizedCodeObjectPoolReferencesUnoptimized(t *testing.T) {
	iso := newTestIsolate()
	fn := iso.NewFunction("hot", true, func(*Isolate, []Value) Value { return Nil },
		CallSiteDesc{Selector: "+", NumArgsTested: 2, Kind: SiteICCall})
	opt := iso.NewOptimizedCode(fn)

	unopt := unoptimizedFromPool(opt)
	if unopt == nil {
		t.Fatal("object pool should reference the unoptimized code")
	}
	if unopt != fn.UnoptimizedCode() {
		t.Error("pool entry should be the function's unoptimized code")
	}
	if len(opt.PcDescriptors()) != 1 {
		t.Errorf("pc descriptors = %d, want 1", len(opt.PcDescriptors()))
	}
}

func TestLazyCompileStubCompilesOnInvoke(t *testing.T) {
	iso := newTestIsolate()
	fn := iso.NewFunction("lazy", true, func(*Isolate, []Value) Value { return SmallInt(42) })
	if !fn.CurrentCode().IsStub() {
		t.Fatal("fresh function should start on the lazy-compile stub")
	}

	v, err := iso.InvokeFunction(fn)
	if err != nil {
		t.Fatal(err)
	}
	if v != Value(SmallInt(42)) {
		t.Errorf("lazy() = %v, want 42", v)
	}
	if fn.CurrentCode().IsStub() {
		t.Error("invocation should compile unoptimized code")
	}
}
