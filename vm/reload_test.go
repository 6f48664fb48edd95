package vm

import (
	"fmt"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Test program harness
// ---------------------------------------------------------------------------

// program builds one version of a test program into a freshly registered
// library. Parsing is an external collaborator, so tests stand in for the
// parser: the initial version is loaded directly, later versions are
// installed through the library tag handler during a reload.
type program func(iso *Isolate, lib *Library)

func loadInitial(t *testing.T, iso *Isolate, url string, def program) *Library {
	t.Helper()
	lib := iso.RegisterLibrary(url)
	def(iso, lib)
	if err := lib.Toplevel().EnsureIsFinalized(iso); err != nil {
		t.Fatal(err)
	}
	iso.SetRootLibrary(lib)
	return lib
}

// installVersion points the tag handler at *def, so tests can swap the
// program between reloads.
func installVersion(iso *Isolate, def *program) {
	iso.SetLibraryTagHandler(func(iso *Isolate, tag LibraryTag, url string) error {
		lib := iso.RegisterLibrary(url)
		(*def)(iso, lib)
		iso.SetRootLibrary(lib)
		return nil
	})
}

func invokeStr(t *testing.T, iso *Isolate, name string) string {
	t.Helper()
	v, err := iso.Invoke(name)
	if err != nil {
		t.Fatalf("Invoke(%s): %v", name, err)
	}
	return ValueString(v)
}

func drainEvent(t *testing.T, iso *Isolate) *ServiceEvent {
	t.Helper()
	select {
	case ev := <-iso.Events():
		return ev
	default:
		t.Fatal("no service event published")
		return nil
	}
}

// ---------------------------------------------------------------------------
// Scenario: function body changed
// ---------------------------------------------------------------------------

func mainReturning(result Value) program {
	return func(iso *Isolate, lib *Library) {
		fn := iso.NewFunction("main", true, func(*Isolate, []Value) Value { return result })
		lib.Toplevel().AddFunction(fn)
	}
}

func TestReloadFunctionBodyChanged(t *testing.T) {
	iso := newTestIsolate()
	loadInitial(t, iso, "test:app", mainReturning(SmallInt(4)))

	if got := invokeStr(t, iso, "main"); got != "4" {
		t.Fatalf("main() = %s, want 4", got)
	}

	next := mainReturning(SmallInt(10))
	installVersion(iso, &next)
	if err := iso.Reload("test:app"); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if got := invokeStr(t, iso, "main"); got != "10" {
		t.Errorf("main() after reload = %s, want 10", got)
	}

	ev := drainEvent(t, iso)
	if ev.Kind != EventIsolateReload || ev.Error != "" {
		t.Errorf("event = %+v, want a clean IsolateReload event", ev)
	}
}

// ---------------------------------------------------------------------------
// Scenario: static value preserved
// ---------------------------------------------------------------------------

func staticValueProgram(initResult string) program {
	return func(iso *Isolate, lib *Library) {
		top := lib.Toplevel()
		initFn := iso.NewFunction("init", true, func(*Isolate, []Value) Value { return Str(initResult) })
		top.AddFunction(initFn)
		top.AddField(iso.NewField("v", true))

		var mainFn *Function
		mainFn = iso.NewFunction("main", true, func(iso *Isolate, args []Value) Value {
			r, err := iso.CallStatic(mainFn, 0)
			if err != nil {
				return Str("error:" + err.Error())
			}
			v := mainFn.Owner().LookupField("v").StaticValue()
			return Str(fmt.Sprintf("init()=%s,value=%s", ValueString(r), ValueString(v)))
		}, CallSiteDesc{Selector: "init", Kind: SiteUnoptStaticCall})
		top.AddFunction(mainFn)
	}
}

func TestReloadPreservesStaticFieldValue(t *testing.T) {
	iso := newTestIsolate()
	lib := loadInitial(t, iso, "test:app", staticValueProgram("old"))
	// var v = init();
	lib.Toplevel().LookupField("v").SetStaticValue(Str("old"))

	if got := invokeStr(t, iso, "main"); got != "init()=old,value=old" {
		t.Fatalf("main() = %q", got)
	}

	next := staticValueProgram("new")
	installVersion(iso, &next)
	if err := iso.Reload("test:app"); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if got := invokeStr(t, iso, "main"); got != "init()=new,value=old" {
		t.Errorf("main() after reload = %q, want init()=new,value=old", got)
	}
}

// ---------------------------------------------------------------------------
// Scenario: field count change rejected
// ---------------------------------------------------------------------------

func classWithFields(name string, fields ...string) program {
	return func(iso *Isolate, lib *Library) {
		cls := iso.NewClass(name, lib, nil)
		iso.RegisterClass(cls)
		for _, f := range fields {
			cls.AddField(iso.NewField(f, false))
		}
	}
}

// checkpointState captures what Rollback must restore bit-for-bit.
type checkpointState struct {
	numCids    int
	classes    []*Class
	libraries  []*Library
	indices    []int
	root       *Library
	debuggable []bool
}

func captureState(iso *Isolate) checkpointState {
	st := checkpointState{
		numCids:   iso.ClassTable().NumCids(),
		classes:   iso.ClassTable().snapshot(),
		libraries: append([]*Library(nil), iso.Libraries()...),
		root:      iso.RootLibrary(),
	}
	for _, lib := range st.libraries {
		st.indices = append(st.indices, lib.Index())
		st.debuggable = append(st.debuggable, lib.IsDebuggable())
	}
	return st
}

func checkStateRestored(t *testing.T, iso *Isolate, st checkpointState) {
	t.Helper()
	if got := iso.ClassTable().NumCids(); got != st.numCids {
		t.Errorf("NumCids = %d, want %d", got, st.numCids)
	}
	for i, cls := range st.classes {
		if iso.ClassTable().At(ClassID(i)) != cls {
			t.Errorf("class table slot %d changed across rollback", i)
		}
	}
	libs := iso.Libraries()
	if len(libs) != len(st.libraries) {
		t.Fatalf("library count = %d, want %d", len(libs), len(st.libraries))
	}
	for i := range libs {
		if libs[i] != st.libraries[i] {
			t.Errorf("library list slot %d changed across rollback", i)
		}
		if libs[i].Index() != st.indices[i] {
			t.Errorf("library %s index = %d, want %d", libs[i].URL, libs[i].Index(), st.indices[i])
		}
		if libs[i].IsDebuggable() != st.debuggable[i] {
			t.Errorf("library %s debuggable bit changed across rollback", libs[i].URL)
		}
	}
	if iso.RootLibrary() != st.root {
		t.Error("root library changed across rollback")
	}
}

func TestReloadFieldCountChangeRejected(t *testing.T) {
	iso := newTestIsolate()
	loadInitial(t, iso, "test:app", classWithFields("A", "f"))
	clsA := iso.RootLibrary().ResolveClass("A", iso)
	if clsA == nil {
		t.Fatal("class A not found")
	}
	if err := clsA.EnsureIsFinalized(iso); err != nil {
		t.Fatal(err)
	}
	inst := iso.NewInstance(clsA)
	inst.SetField(0, SmallInt(20))

	st := captureState(iso)

	next := classWithFields("A", "f", "g")
	installVersion(iso, &next)
	err := iso.Reload("test:app")
	if err == nil {
		t.Fatal("Reload succeeded, want compatibility failure")
	}
	if !strings.Contains(err.Error(), "Number of instance fields changed") {
		t.Errorf("error = %v, want a field-count message", err)
	}

	checkStateRestored(t, iso, st)
	if iso.ClassOf(inst) != clsA {
		t.Error("instance class changed after rollback")
	}
	if got := inst.GetField(0); got != Value(SmallInt(20)) {
		t.Errorf("A.f = %v, want 20 after rollback", got)
	}

	ev := drainEvent(t, iso)
	if ev.Error == "" {
		t.Error("error event should carry the message")
	}
}

func TestReloadParseErrorRollsBack(t *testing.T) {
	iso := newTestIsolate()
	loadInitial(t, iso, "test:app", mainReturning(SmallInt(4)))
	st := captureState(iso)

	iso.SetLibraryTagHandler(func(*Isolate, LibraryTag, string) error {
		return fmt.Errorf("syntax error near line 3")
	})
	err := iso.Reload("test:app")
	if err == nil {
		t.Fatal("Reload succeeded, want parse failure")
	}
	var reloadErr *ReloadError
	if re, ok := err.(*ReloadError); !ok || re.Kind != ErrParse {
		t.Errorf("error = %#v, want a parse ReloadError", err)
	} else {
		reloadErr = re
	}
	if reloadErr != nil && !strings.Contains(reloadErr.Message, "syntax error") {
		t.Errorf("message = %q, want the handler's error", reloadErr.Message)
	}

	checkStateRestored(t, iso, st)
	if got := invokeStr(t, iso, "main"); got != "4" {
		t.Errorf("main() after failed reload = %s, want 4", got)
	}
}

// ---------------------------------------------------------------------------
// Scenario: reload triggered from a live stack
// ---------------------------------------------------------------------------

func liveStackProgram(helperResult Value, reload bool) program {
	return func(iso *Isolate, lib *Library) {
		top := lib.Toplevel()
		helper := iso.NewFunction("helper", true, func(*Isolate, []Value) Value { return helperResult })
		top.AddFunction(helper)

		var mainFn *Function
		mainFn = iso.NewFunction("main", true, func(iso *Isolate, args []Value) Value {
			r1, err := iso.CallStatic(mainFn, 0)
			if err != nil {
				return Str("error:" + err.Error())
			}
			if reload {
				if err := iso.Reload("test:app"); err != nil {
					return Str("reload error:" + err.Error())
				}
			}
			r2, err := iso.CallStatic(mainFn, 0)
			if err != nil {
				return Str("error:" + err.Error())
			}
			return Str(fmt.Sprintf("%s,%s", ValueString(r1), ValueString(r2)))
		}, CallSiteDesc{Selector: "helper", Kind: SiteUnoptStaticCall})
		top.AddFunction(mainFn)
	}
}

func TestReloadOnLiveStack(t *testing.T) {
	iso := newTestIsolate()
	loadInitial(t, iso, "test:app", liveStackProgram(SmallInt(4), true))

	next := liveStackProgram(SmallInt(10), false)
	installVersion(iso, &next)

	// main calls helper, reloads mid-execution, then calls helper again
	// within the same frame: the second call must dispatch to the new
	// body.
	if got := invokeStr(t, iso, "main"); got != "4,10" {
		t.Errorf("main() = %q, want \"4,10\"", got)
	}
}

func TestReloadWhileReloadInProgress(t *testing.T) {
	iso := newTestIsolate()
	loadInitial(t, iso, "test:app", mainReturning(SmallInt(4)))

	var nested error
	iso.SetLibraryTagHandler(func(iso *Isolate, tag LibraryTag, url string) error {
		nested = iso.Reload(url)
		lib := iso.RegisterLibrary(url)
		mainReturning(SmallInt(5))(iso, lib)
		iso.SetRootLibrary(lib)
		return nil
	})
	if err := iso.Reload("test:app"); err != nil {
		t.Fatalf("outer reload: %v", err)
	}
	if nested != ErrReloadInProgress {
		t.Errorf("nested reload error = %v, want ErrReloadInProgress", nested)
	}
}

// ---------------------------------------------------------------------------
// Scenario: inheritance rearranged
// ---------------------------------------------------------------------------

func hierarchyProgram(aExtendsB bool) program {
	return func(iso *Isolate, lib *Library) {
		if aExtendsB {
			b := iso.NewClass("B", lib, nil)
			iso.RegisterClass(b)
			a := iso.NewClass("A", lib, nil)
			a.SetSuper(b)
			iso.RegisterClass(a)
		} else {
			a := iso.NewClass("A", lib, nil)
			iso.RegisterClass(a)
			b := iso.NewClass("B", lib, nil)
			b.SetSuper(a)
			iso.RegisterClass(b)
		}
	}
}

func TestReloadRearrangedInheritance(t *testing.T) {
	iso := newTestIsolate()
	loadInitial(t, iso, "test:app", hierarchyProgram(false))
	root := iso.RootLibrary()
	clsA := root.ResolveClass("A", iso)
	clsB := root.ResolveClass("B", iso)
	if err := clsB.EnsureIsFinalized(iso); err != nil {
		t.Fatal(err)
	}
	aInst := iso.NewInstance(clsA)
	bInst := iso.NewInstance(clsB)

	if iso.ClassOf(aInst).IsSubclassOf(clsB) {
		t.Fatal("precondition: A is not a B before the reload")
	}

	next := hierarchyProgram(true)
	installVersion(iso, &next)
	if err := iso.Reload("test:app"); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	newA := iso.ClassTable().At(clsA.ID())
	newB := iso.ClassTable().At(clsB.ID())
	if !iso.ClassOf(aInst).IsSubclassOf(newB) {
		t.Error("pre-existing A instance should satisfy 'is B' after the reload")
	}
	if iso.ClassOf(bInst) != newB {
		t.Error("B instance should resolve to the replacement B")
	}
	if iso.ClassOf(bInst).IsSubclassOf(newA) {
		t.Error("B no longer extends A after the reload")
	}
}

// ---------------------------------------------------------------------------
// Scenario: library added and removed
// ---------------------------------------------------------------------------

func rootWithoutMath(iso *Isolate, lib *Library) {}

func rootWithMath(iso *Isolate, lib *Library) {
	math := iso.RegisterLibrary("test:math")
	maxFn := iso.NewFunction("max", true, func(_ *Isolate, args []Value) Value {
		a, b := args[0].(SmallInt), args[1].(SmallInt)
		if a > b {
			return a
		}
		return b
	})
	math.Toplevel().AddFunction(maxFn)
	lib.AddImport(math)
}

func checkLibraryIndices(t *testing.T, iso *Isolate) {
	t.Helper()
	for i, lib := range iso.Libraries() {
		if lib.Index() != i {
			t.Errorf("library %s index = %d, want %d", lib.URL, lib.Index(), i)
		}
	}
}

func TestReloadLibraryAddedAndRemoved(t *testing.T) {
	iso := newTestIsolate()
	loadInitial(t, iso, "test:app", rootWithoutMath)

	if _, err := iso.Invoke("max", SmallInt(1), SmallInt(2)); err == nil {
		t.Fatal("max should be unresolved before the import exists")
	}

	next := program(rootWithMath)
	installVersion(iso, &next)
	if err := iso.Reload("test:app"); err != nil {
		t.Fatalf("Reload (add import): %v", err)
	}
	checkLibraryIndices(t, iso)

	v, err := iso.Invoke("max", SmallInt(1), SmallInt(2))
	if err != nil {
		t.Fatalf("max after adding import: %v", err)
	}
	if v != Value(SmallInt(2)) {
		t.Errorf("max(1, 2) = %v, want 2", v)
	}

	next = rootWithoutMath
	if err := iso.Reload("test:app"); err != nil {
		t.Fatalf("Reload (remove import): %v", err)
	}
	checkLibraryIndices(t, iso)

	if _, err := iso.Invoke("max", SmallInt(1), SmallInt(2)); err == nil {
		t.Error("max should be unresolved after the import is removed")
	}
}

// ---------------------------------------------------------------------------
// World invalidation
// ---------------------------------------------------------------------------

func TestReloadInvalidatesDirtyAndPreservesClean(t *testing.T) {
	iso := newTestIsolate()

	var fooFn *Function
	warmProgram := func(iso *Isolate, lib *Library) {
		var fn *Function
		fn = iso.NewFunction("foo", true, func(iso *Isolate, args []Value) Value {
			v, err := iso.CallDynamic(fn, 0, SmallInt(1), SmallInt(2))
			if err != nil {
				return Str("error:" + err.Error())
			}
			return v
		}, CallSiteDesc{Selector: "+", NumArgsTested: 2, Kind: SiteICCall})
		lib.Toplevel().AddFunction(fn)
		fooFn = fn
	}
	loadInitial(t, iso, "test:app", warmProgram)

	// A clean-library function with its own call site.
	var tickFn *Function
	tickFn = iso.NewFunction("tick", true, func(iso *Isolate, args []Value) Value {
		v, err := iso.CallDynamic(tickFn, 0, SmallInt(1), SmallInt(1))
		if err != nil {
			return Str("error:" + err.Error())
		}
		return v
	}, CallSiteDesc{Selector: "+", NumArgsTested: 2, Kind: SiteICCall})
	iso.CoreLibrary().Toplevel().AddFunction(tickFn)

	// Warm both functions so they have code and recorded type feedback.
	if got := invokeStr(t, iso, "foo"); got != "3" {
		t.Fatalf("foo() = %s, want 3", got)
	}
	if v, err := iso.InvokeFunction(tickFn); err != nil || v != Value(SmallInt(2)) {
		t.Fatalf("tick() = %v, %v", v, err)
	}
	if fooFn.ICDataArray()[0].NumberOfChecks() == 0 {
		t.Fatal("foo's IC should be warm")
	}

	oldFoo := fooFn
	next := program(warmProgram)
	installVersion(iso, &next)
	if err := iso.Reload("test:app"); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	// Dirty library: code and feedback fully cleared.
	if !oldFoo.CurrentCode().IsStub() {
		t.Error("dirty function should fall back to the lazy-compile stub")
	}
	if oldFoo.ICDataArray() != nil {
		t.Error("dirty function should have no IC data")
	}
	if oldFoo.UsageCounter() != 0 {
		t.Error("dirty function usage counter should be zeroed")
	}

	// Clean library: unoptimized code kept, feedback scrubbed, counters
	// zeroed.
	if !tickFn.HasCode() {
		t.Error("clean function should keep its unoptimized code")
	}
	if !tickFn.ICDataArray()[0].HasSentinel() {
		t.Error("clean function IC should carry the sentinel")
	}
	if tickFn.EdgeCounter(0) != 0 {
		t.Error("clean function edge counter should be zeroed")
	}
	if tickFn.UsageCounter() != 0 {
		t.Error("clean function usage counter should be zeroed")
	}

	// The megamorphic cache table was dropped wholesale.
	if iso.MegamorphicCache().Len() != 0 {
		t.Error("megamorphic cache should be empty after reload")
	}
}

func TestReloadDeoptimizesOptimizedFrames(t *testing.T) {
	iso := newTestIsolate()

	buildProgram := func(iso *Isolate, lib *Library) {
		var fn *Function
		fn = iso.NewFunction("spin", true, func(iso *Isolate, args []Value) Value {
			if len(args) == 1 && args[0] == Value(Str("reload")) {
				if err := iso.Reload("test:app"); err != nil {
					return Str("error:" + err.Error())
				}
				top := iso.stack[len(iso.stack)-1]
				if top.LookupCode().IsOptimized() {
					return Str("still optimized")
				}
				return Str("deoptimized")
			}
			return Nil
		})
		lib.Toplevel().AddFunction(fn)
		_ = fn
	}
	loadInitial(t, iso, "test:app", buildProgram)

	spin := iso.RootLibrary().LookupLocalFunction("spin")
	spin.EnsureHasCompiledUnoptimizedCode(iso)
	opt := iso.NewOptimizedCode(spin)
	if spin.CurrentCode() != opt {
		t.Fatal("optimized code should be current")
	}

	next := program(buildProgram)
	installVersion(iso, &next)

	v, err := iso.InvokeFunction(spin, Str("reload"))
	if err != nil {
		t.Fatal(err)
	}
	if v != Value(Str("deoptimized")) {
		t.Errorf("spin = %v, want the frame switched to unoptimized code", v)
	}
}

// ---------------------------------------------------------------------------
// Properties and bookkeeping
// ---------------------------------------------------------------------------

func TestReloadPreservesDebuggableBit(t *testing.T) {
	iso := newTestIsolate()
	lib := loadInitial(t, iso, "test:app", mainReturning(SmallInt(4)))
	lib.SetDebuggable(false)

	next := mainReturning(SmallInt(10))
	installVersion(iso, &next)
	if err := iso.Reload("test:app"); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if iso.RootLibrary() == lib {
		t.Fatal("root library should be the replacement")
	}
	if iso.RootLibrary().IsDebuggable() {
		t.Error("debuggable bit should be carried over to the replacement library")
	}
}

func TestIdentityReloadKeepsCounts(t *testing.T) {
	flags := DefaultFlags()
	flags.TraceReload = false
	flags.IdentityReload = true
	iso := NewIsolateWithFlags(flags)
	loadInitial(t, iso, "test:app", mainReturning(SmallInt(4)))

	cidsBefore := iso.ClassTable().NumCids()
	libsBefore := len(iso.Libraries())

	next := mainReturning(SmallInt(4))
	installVersion(iso, &next)
	if err := iso.Reload("test:app"); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if got := iso.ClassTable().NumCids(); got != cidsBefore {
		t.Errorf("NumCids = %d, want %d after identity reload", got, cidsBefore)
	}
	if got := len(iso.Libraries()); got != libsBefore {
		t.Errorf("library count = %d, want %d after identity reload", got, libsBefore)
	}
}

func TestGetClassForHeapWalkAtUsesSavedTable(t *testing.T) {
	iso := newTestIsolate()
	loadInitial(t, iso, "test:app", classWithFields("A", "f"))
	clsA := iso.RootLibrary().ResolveClass("A", iso)
	aCid := clsA.ID()

	var duringReload *Class
	iso.SetLibraryTagHandler(func(iso *Isolate, tag LibraryTag, url string) error {
		duringReload = iso.GetClassForHeapWalkAt(aCid)
		lib := iso.RegisterLibrary(url)
		classWithFields("A", "f")(iso, lib)
		iso.SetRootLibrary(lib)
		return nil
	})
	if err := iso.Reload("test:app"); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if duringReload != clsA {
		t.Error("heap walk during reload should see the pre-reload class")
	}
	if got := iso.GetClassForHeapWalkAt(aCid); got == clsA {
		t.Error("heap walk after reload should see the replacement class")
	}
}

func TestFindOriginalClass(t *testing.T) {
	iso := newTestIsolate()
	loadInitial(t, iso, "test:app", classWithFields("A", "f"))
	clsA := iso.RootLibrary().ResolveClass("A", iso)

	next := program(classWithFields("A", "f"))
	installVersion(iso, &next)

	// Drive the phases by hand so the context stays open for inspection,
	// the way the debugger sees it.
	ctx := newReloadContext(iso)
	iso.reloadContext = ctx
	defer func() { iso.reloadContext = nil }()

	ctx.StartReload("test:app")
	ctx.BuildClassMapping()

	var newA *Class
	ct := iso.ClassTable()
	for i := ClassID(ctx.savedNumCids); int(i) < ct.NumCids(); i++ {
		if cls := ct.At(i); cls != nil && cls.Name == "A" {
			newA = cls
		}
	}
	if newA == nil {
		t.Fatal("replacement class not registered by the handler")
	}
	if got := ctx.FindOriginalClass(newA); got != clsA {
		t.Errorf("FindOriginalClass = %v, want the pre-reload class", got)
	}

	ctx.BuildLibraryMapping()
	ctx.FinalizeClassTable()
	if !ctx.Validate() {
		t.Fatalf("Validate failed: %v", ctx.Err())
	}
	ctx.Commit()
	ctx.PostCommit()
}

func TestAbortReloadReportsAndRollsBack(t *testing.T) {
	iso := newTestIsolate()
	loadInitial(t, iso, "test:app", mainReturning(SmallInt(4)))
	st := captureState(iso)

	next := mainReturning(SmallInt(10))
	installVersion(iso, &next)

	ctx := newReloadContext(iso)
	iso.reloadContext = ctx
	defer func() { iso.reloadContext = nil }()

	ctx.StartReload("test:app")
	ctx.AbortReload(&ReloadError{Kind: ErrParse, Message: "aborted by tooling"})

	checkStateRestored(t, iso, st)
	ev := drainEvent(t, iso)
	if ev.Error != "aborted by tooling" {
		t.Errorf("event error = %q, want the abort message", ev.Error)
	}
	if got := invokeStr(t, iso, "main"); got != "4" {
		t.Errorf("main() after abort = %s, want 4", got)
	}
}

func TestReloadCopiesCanonicalConstants(t *testing.T) {
	iso := newTestIsolate()
	loadInitial(t, iso, "test:app", classWithFields("A"))
	clsA := iso.RootLibrary().ResolveClass("A", iso)
	clsA.AddCanonicalConstant(Str("const"))

	next := program(classWithFields("A"))
	installVersion(iso, &next)
	if err := iso.Reload("test:app"); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	newA := iso.ClassTable().At(clsA.ID())
	consts := newA.CanonicalConstants()
	if len(consts) != 1 || consts[0] != Value(Str("const")) {
		t.Errorf("constants = %v, want the old class's constants", consts)
	}
}
