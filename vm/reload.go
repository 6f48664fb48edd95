package vm

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

var reloadLog = commonlog.GetLogger("vm.reload")

// debugChecks enables the engine's internal verification passes: corpse
// target scans around forwarding, map injectivity checks, and instance
// class verification at rollback.
var debugChecks = true

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// ErrReloadInProgress is returned when a reload is requested while one is
// already active on the isolate.
var ErrReloadInProgress = errors.New("vm: reload already in progress")

// ReloadErrorKind classifies recoverable reload failures.
type ReloadErrorKind uint8

const (
	// ErrParse: the external source-load callback failed.
	ErrParse ReloadErrorKind = iota
	// ErrCompatibility: structural mismatch between old and new class.
	ErrCompatibility
)

func (k ReloadErrorKind) String() string {
	switch k {
	case ErrParse:
		return "parse"
	case ErrCompatibility:
		return "compatibility"
	}
	return "?"
}

// ReloadError is a recoverable reload failure. It is reported over the
// service event channel and causes a rollback; the program continues on
// the pre-reload code as if the reload had not been attempted.
type ReloadError struct {
	Kind    ReloadErrorKind
	Message string
}

func (e *ReloadError) Error() string {
	return fmt.Sprintf("reload %s error: %s", e.Kind, e.Message)
}

// ---------------------------------------------------------------------------
// ReloadContext
// ---------------------------------------------------------------------------

// libraryInfo is the per-library side table built at commit.
type libraryInfo struct {
	dirty bool
}

// ReloadContext carries all per-reload state: the checkpoint of the class
// table and library list, the identity maps, and the pending forwards. It
// is allocated at StartReload and dropped after FinishReload or
// AbortReload.
type ReloadContext struct {
	id  string
	iso *Isolate

	hasError bool
	err      *ReloadError

	scriptURL string

	savedNumCids    int
	savedClassTable []*Class
	deadClasses     []bool

	numSavedLibs     int
	savedRootLibrary *Library
	savedLibraries   []*Library

	oldClasses   *oldClassSet
	oldLibraries *oldLibrarySet
	classes      *classMap
	libraries    *libraryMap
	become       *becomeMap

	libraryInfos []libraryInfo

	started time.Time
}

func newReloadContext(iso *Isolate) *ReloadContext {
	return &ReloadContext{
		id:           uuid.NewString(),
		iso:          iso,
		savedNumCids: -1,
		numSavedLibs: -1,
		oldClasses:   newOldClassSet(),
		oldLibraries: newOldLibrarySet(),
		classes:      newClassMap(),
		libraries:    newLibraryMap(),
		become:       newBecomeMap(),
		started:      time.Now(),
	}
}

// ID returns the reload's unique id.
func (ctx *ReloadContext) ID() string { return ctx.id }

// Err returns the reported error, or nil.
func (ctx *ReloadContext) Err() *ReloadError { return ctx.err }

func (ctx *ReloadContext) trace(format string, args ...any) {
	if ctx.iso.flags.TraceReload {
		reloadLog.Infof(format, args...)
	}
}

// ---------------------------------------------------------------------------
// Driver
// ---------------------------------------------------------------------------

// Reload runs a full reload of the program rooted at rootURL: checkpoint,
// parse through the library tag handler, identity mapping, validation, and
// commit-or-rollback. It returns nil when the program was atomically
// rebound to the new version, or the reported error after a rollback.
func (iso *Isolate) Reload(rootURL string) error {
	iso.reloadMu.Lock()
	if iso.reloadContext != nil {
		iso.reloadMu.Unlock()
		return ErrReloadInProgress
	}
	ctx := newReloadContext(iso)
	iso.reloadContext = ctx
	iso.reloadMu.Unlock()

	defer func() {
		iso.reloadMu.Lock()
		iso.reloadContext = nil
		iso.reloadMu.Unlock()
	}()

	ctx.StartReload(rootURL)
	ctx.FinishReload()

	iso.recordHistory(ctx)
	if ctx.hasError {
		return ctx.err
	}
	return nil
}

// ReloadContext returns the active reload context, or nil.
func (iso *Isolate) ReloadContext() *ReloadContext { return iso.reloadContext }

// StartReload switches the stack to unoptimized code, checkpoints the
// class table and library list, and invokes the external parser with the
// root URL. A parse failure is recorded; FinishReload will roll back.
func (ctx *ReloadContext) StartReload(rootURL string) {
	iso := ctx.iso
	ctx.scriptURL = rootURL
	ctx.trace("---- START RELOAD %s (%s)", rootURL, ctx.id)

	ctx.switchStackToUnoptimizedCode()
	ctx.Checkpoint()

	// Block class finalization attempts while the library tag handler
	// runs: layouts must not be computed against a half-loaded program.
	iso.BlockClassFinalization()
	var err error
	if iso.tagHandler == nil {
		err = fmt.Errorf("no library tag handler installed")
	} else {
		err = iso.tagHandler(iso, TagScript, rootURL)
	}
	iso.UnblockClassFinalization()

	if err != nil {
		ctx.ReportError(&ReloadError{Kind: ErrParse, Message: err.Error()})
	}
}

// FinishReload pairs new entities with old ones, finalizes the class
// table, and commits or rolls back. The background compiler is disabled
// for the duration.
func (ctx *ReloadContext) FinishReload() {
	iso := ctx.iso
	iso.bgCompiler.Disable()
	defer iso.bgCompiler.Enable()

	ctx.BuildClassMapping()
	ctx.BuildLibraryMapping()
	ctx.FinalizeClassTable()
	ctx.trace("---- DONE FINALIZING")

	if ctx.Validate() {
		ctx.Commit()
		ctx.PostCommit()
	} else {
		ctx.Rollback()
	}
}

// AbortReload reports the error and rolls back.
func (ctx *ReloadContext) AbortReload(err *ReloadError) {
	ctx.ReportError(err)
	ctx.Rollback()
}

// switchStackToUnoptimizedCode makes sure every program function on the
// stack has compiled unoptimized code to resume in.
func (ctx *ReloadContext) switchStackToUnoptimizedCode() {
	it := ctx.iso.NewFrameIterator()
	for it.HasNext() {
		frame := it.Next()
		if frame.IsProgramFrame() {
			frame.LookupFunction().EnsureHasCompiledUnoptimizedCode(ctx.iso)
		}
	}
}

// ---------------------------------------------------------------------------
// Checkpoint
// ---------------------------------------------------------------------------

// Checkpoint snapshots the class table and library list and clears the
// compile-time constants cache.
func (ctx *ReloadContext) Checkpoint() {
	ctx.CheckpointClasses()
	ctx.CheckpointLibraries()
	ctx.iso.store.compileTimeConstants = make(map[string]Value)
}

// CheckpointClasses copies the class table size and contents and builds
// the old-class set used to pair new classes with old ones. The saved
// table is scanned as a GC root for as long as it is retained.
func (ctx *ReloadContext) CheckpointClasses() {
	ctx.trace("---- CHECKPOINTING CLASSES")
	ct := ctx.iso.classTable

	ctx.savedNumCids = ct.NumCids()
	saved := ct.snapshot()

	for i := firstUserCid; int(i) < len(saved); i++ {
		cls := saved[i]
		if cls == nil {
			continue
		}
		if !ctx.oldClasses.Insert(cls) {
			panic(fmt.Sprintf("vm: duplicate class %s in checkpoint", cls))
		}
	}
	// Assign the field only after the table is fully copied.
	ctx.savedClassTable = saved
	ctx.trace("---- system had %d classes", ctx.savedNumCids)
}

// isCleanLibrary reports whether lib is preserved across the reload
// instead of reloaded.
func isCleanLibrary(lib *Library) bool {
	return lib.IsRuntimeLibrary()
}

// CheckpointLibraries saves the library list and root library, then
// installs a filtered live list containing only clean libraries,
// reindexed. Non-clean libraries get index -1: not in the live list.
func (ctx *ReloadContext) CheckpointLibraries() {
	iso := ctx.iso
	ctx.savedRootLibrary = iso.store.rootLibrary
	ctx.savedLibraries = append([]*Library(nil), iso.store.libraries...)

	var newLibs []*Library
	ctx.numSavedLibs = 0
	for _, lib := range ctx.savedLibraries {
		if isCleanLibrary(lib) {
			lib.SetIndex(len(newLibs))
			newLibs = append(newLibs, lib)
			ctx.numSavedLibs++
		} else {
			lib.SetIndex(-1)
		}
		if !ctx.oldLibraries.Insert(lib) {
			panic(fmt.Sprintf("vm: duplicate library %s in checkpoint", lib.URL))
		}
	}
	iso.store.libraries = newLibs
	iso.store.rootLibrary = nil
}

// ---------------------------------------------------------------------------
// Rollback
// ---------------------------------------------------------------------------

// Rollback restores the checkpointed class table and library list; the
// runtime state is bit-for-bit what it was before StartReload.
func (ctx *ReloadContext) Rollback() {
	ctx.RollbackClasses()
	ctx.RollbackLibraries()
}

// RollbackClasses drops classes added since the checkpoint and restores
// the saved table.
func (ctx *ReloadContext) RollbackClasses() {
	ctx.trace("---- ROLLING BACK CLASS TABLE")
	if ctx.savedNumCids <= 0 || ctx.savedClassTable == nil {
		panic("vm: rollback without class checkpoint")
	}
	if debugChecks {
		ctx.verifyInstanceClasses()
	}
	ct := ctx.iso.classTable
	ct.DropNewClasses(ctx.savedNumCids)
	for i := 0; i < ctx.savedNumCids; i++ {
		if ClassID(i) > illegalCid {
			ct.SetAt(ClassID(i), ctx.savedClassTable[i])
		}
	}
	ctx.savedClassTable = nil
	ctx.savedNumCids = 0
}

// RollbackLibraries restores the saved library list, per-library indices,
// and the saved root library.
func (ctx *ReloadContext) RollbackLibraries() {
	ctx.trace("---- ROLLING BACK LIBRARY CHANGES")
	iso := ctx.iso
	if ctx.savedLibraries != nil {
		iso.store.libraries = ctx.savedLibraries
		for i, lib := range ctx.savedLibraries {
			lib.SetIndex(i)
		}
	}
	if ctx.savedRootLibrary != nil {
		iso.store.rootLibrary = ctx.savedRootLibrary
	}
	ctx.savedRootLibrary = nil
	ctx.savedLibraries = nil
}

// verifyInstanceClasses asserts that no instance on the heap has a class
// id at or above the checkpoint limit: no user code ran during the parse
// step, so nothing may have allocated against a new class.
func (ctx *ReloadContext) verifyInstanceClasses() {
	limit := ClassID(ctx.savedNumCids)
	ctx.iso.heap.VisitObjects(func(obj Object) {
		inst, ok := obj.(*Instance)
		if !ok {
			return
		}
		if inst.ClassID() >= limit {
			panic(fmt.Sprintf("vm: instance above cid limit %d >= %d", inst.ClassID(), limit))
		}
	})
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

// BuildClassMapping pairs each class registered since the checkpoint with
// its predecessor by structural identity. A class with no predecessor is
// new and maps to itself.
func (ctx *ReloadContext) BuildClassMapping() {
	ct := ctx.iso.classTable
	lower, upper := ClassID(ctx.savedNumCids), ClassID(ct.NumCids())
	for i := lower; i < upper; i++ {
		if !ct.HasValidClassAt(i) {
			continue
		}
		replacementOrNew := ct.At(i)
		old := ctx.oldClasses.Lookup(replacementOrNew)
		if old == nil {
			if ctx.iso.flags.IdentityReload {
				reloadLog.Noticef("identity reload: no replacement class for %s", replacementOrNew)
			}
			ctx.classes.Add(replacementOrNew, replacementOrNew)
		} else {
			ctx.classes.Add(replacementOrNew, old)
		}
	}
}

// BuildLibraryMapping pairs each live non-clean library with its
// predecessor by URL and enqueues old -> new forwards for matched pairs.
func (ctx *ReloadContext) BuildLibraryMapping() {
	for _, replacementOrNew := range ctx.iso.store.libraries {
		if isCleanLibrary(replacementOrNew) {
			continue
		}
		old := ctx.oldLibraries.Lookup(replacementOrNew)
		if old == nil {
			// New library.
			ctx.libraries.Add(replacementOrNew, replacementOrNew)
		} else {
			ctx.libraries.Add(replacementOrNew, old)
			ctx.become.Add(old, replacementOrNew)
		}
	}
}

// FinalizeClassTable makes the class table look the way it will if the
// reload succeeds: each replaced class takes over its predecessor's id
// (keeping the id stable for every existing instance), the replacement's
// former slot is marked dead, and the old -> new forward is enqueued.
// The table is then compacted so ids are final before the canonical-type
// rehash. The reload may still abort; rollback restores the saved table.
func (ctx *ReloadContext) FinalizeClassTable() {
	ct := ctx.iso.classTable
	ctx.deadClasses = make([]bool, ct.NumCids())

	ctx.classes.ForEach(func(newCls, oldCls *Class) {
		if newCls == oldCls {
			return
		}
		ctx.trace("replaced %s@%d with %s@%d", oldCls, oldCls.ID(), newCls, newCls.ID())
		if ctx.deadClasses[newCls.ID()] {
			panic("vm: replacement class slot already dead")
		}
		ctx.deadClasses[newCls.ID()] = true
		ct.ReplaceClass(oldCls, newCls)
		ctx.become.Add(oldCls, newCls)
	})

	ctx.trace("---- compacting the class table")
	ctx.compactClassTable()
	ctx.trace("---- system has %d classes", ct.NumCids())
	ctx.deadClasses = nil
}

// compactClassTable moves live classes registered since the checkpoint
// down into dead slots, updating their ids, then trims the table.
func (ctx *ReloadContext) compactClassTable() {
	ct := ctx.iso.classTable
	top := ClassID(ct.NumCids())
	newTop := ctx.savedNumCids
	for free := ClassID(ctx.savedNumCids); free < top; free++ {
		if !ctx.deadClasses[free] {
			newTop++
			continue
		}
		for src := free + 1; src < top; src++ {
			if ctx.deadClasses[src] {
				continue
			}
			ct.MoveClass(free, src)
			ctx.deadClasses[src] = true
			newTop++
			break
		}
	}
	ct.DropNewClasses(newTop)
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate runs the per-class compatibility check over every replaced
// pair. The first failure reports and aborts; once an error is recorded
// the remaining checks are skipped.
func (ctx *ReloadContext) Validate() bool {
	if ctx.hasError {
		return false
	}
	for _, newCls := range ctx.classes.order {
		oldCls := ctx.classes.byNew[newCls]
		if newCls == oldCls {
			continue
		}
		if !ctx.CanReload(oldCls, newCls) {
			return false
		}
	}
	return true
}

// verifyMaps checks that the class map is injective on matched pairs: two
// distinct new classes must not share an old class.
func (ctx *ReloadContext) verifyMaps() {
	seen := make(map[*Class]*Class)
	ctx.classes.ForEach(func(newCls, oldCls *Class) {
		if newCls == oldCls {
			return
		}
		if prior, ok := seen[oldCls]; ok {
			panic(fmt.Sprintf("vm: classes %s and %s both map to %s", prior, newCls, oldCls))
		}
		seen[oldCls] = newCls
	})
}

// ---------------------------------------------------------------------------
// Commit
// ---------------------------------------------------------------------------

// Commit makes the reload permanent. The order is fixed: static-field
// copy and patching, library bit copy, library reindex, bulk forward,
// canonical-type rehash. After the forward returns there is no way back.
func (ctx *ReloadContext) Commit() {
	iso := ctx.iso
	ctx.trace("---- COMMITTING RELOAD")

	if debugChecks {
		ctx.verifyMaps()
	}

	// Copy static field values from the old classes to the new classes
	// and patch the old classes' functions and fields so they retain
	// their original script.
	ctx.classes.ForEach(func(newCls, oldCls *Class) {
		if newCls == oldCls {
			return
		}
		if newCls.IsEnum() != oldCls.IsEnum() {
			panic(fmt.Sprintf("vm: enum-ness changed in %s", oldCls))
		}
		if newCls.IsEnum() && newCls.IsFinalized() {
			ctx.ReplaceEnum(newCls, oldCls)
		}
		ctx.CopyStaticFieldValues(newCls, oldCls)
		ctx.CopyCanonicalConstants(newCls, oldCls)
		ctx.PatchFieldsAndFunctions(oldCls)
	})

	// Carry forward per-library properties.
	ctx.libraries.ForEach(func(newLib, oldLib *Library) {
		if newLib != oldLib {
			newLib.SetDebuggable(oldLib.IsDebuggable())
		}
	})

	// Reindex the live library list and build the dirty side table:
	// libraries after the saved prefix were reloaded.
	libs := iso.store.libraries
	ctx.libraryInfos = make([]libraryInfo, len(libs))
	for i, lib := range libs {
		ctx.trace("lib %s at index %d", lib.URL, i)
		lib.SetIndex(i)
		ctx.libraryInfos[i].dirty = i >= ctx.numSavedLibs
	}

	// Flip every old identity to its replacement in one pass.
	before, after := ctx.become.Drain(iso)
	iso.ForwardIdentity(before, after)

	if iso.flags.IdentityReload {
		if ctx.savedNumCids != iso.classTable.NumCids() {
			reloadLog.Noticef("identity reload failed: B#C=%d A#C=%d",
				ctx.savedNumCids, iso.classTable.NumCids())
		}
		if len(ctx.savedLibraries) != len(iso.store.libraries) {
			reloadLog.Noticef("identity reload failed: B#L=%d A#L=%d",
				len(ctx.savedLibraries), len(iso.store.libraries))
		}
	}

	// The canonical type vectors were hashed against the old class ids.
	iso.store.canonicalTypeArgs.rehash()
}

// PostCommit drops the library checkpoint and invalidates the world.
func (ctx *ReloadContext) PostCommit() {
	ctx.savedRootLibrary = nil
	ctx.savedLibraries = nil
	ctx.InvalidateWorld()
	ctx.ReportSuccess()
}

// ---------------------------------------------------------------------------
// World invalidation
// ---------------------------------------------------------------------------

// InvalidateWorld removes every trace of the old class topology from
// executable state: megamorphic caches, optimized frames, on-stack inline
// caches, and per-function code and feedback.
func (ctx *ReloadContext) InvalidateWorld() {
	iso := ctx.iso

	ctx.resetMegamorphicCaches()
	iso.DeoptimizeFunctionsOnStack()

	iso.beginNoSafepoint()
	defer iso.endNoSafepoint()
	scope := iso.heap.beginIteration()
	defer scope.end()

	ctx.resetUnoptimizedICsOnStack()
	ctx.markAllFunctionsForRecompilation()
}

// resetMegamorphicCaches drops the whole cache table. Current optimized
// code makes no more calls after the deopt pass, so letting the old
// caches go is cheaper than rebinding each entry.
func (ctx *ReloadContext) resetMegamorphicCaches() {
	ctx.iso.store.megamorphicCache = newMegamorphicCache()
}

// resetUnoptimizedICsOnStack resets the inline caches that will execute
// once the stack resumes. For an optimized frame the ICs that matter are
// those of the unoptimized code referenced from the optimized code's
// object pool: that is the code that finishes the activation after
// deoptimization, and it can differ from the function's current
// unoptimized code.
func (ctx *ReloadContext) resetUnoptimizedICsOnStack() {
	it := ctx.iso.NewFrameIterator()
	for it.HasNext() {
		frame := it.Next()
		if !frame.IsProgramFrame() {
			continue
		}
		code := frame.LookupCode()
		if code.IsOptimized() {
			fn := code.Function()
			for _, entry := range code.ObjectPool() {
				poolCode, ok := entry.(*Code)
				if !ok || poolCode.IsOptimized() {
					continue
				}
				if poolCode.Function() == fn {
					ctx.resetICs(fn, poolCode)
				}
			}
		} else {
			ctx.resetICs(code.Function(), code)
		}
	}
}

// resetICs resets every IC site of code per the rebinding policy.
func (ctx *ReloadContext) resetICs(fn *Function, code *Code) {
	if fn == nil || fn.ICDataArray() == nil {
		return // already cleared in an earlier round
	}
	for _, desc := range code.PcDescriptors() {
		if desc.Kind != PcDescICCall && desc.Kind != PcDescUnoptStaticCall {
			continue
		}
		ic := fn.ICDataArray()[desc.DeoptID]
		if ic == nil {
			continue
		}
		ic.Reset(ctx.iso, desc.Kind == PcDescUnoptStaticCall)
	}
}

// markAllFunctionsForRecompilation walks the heap and prepares every
// function for the new world: functions in dirty libraries lose their
// code and feedback entirely; functions in clean libraries keep their
// unoptimized code but have their feedback scrubbed to sentinels.
func (ctx *ReloadContext) markAllFunctionsForRecompilation() {
	iso := ctx.iso
	iso.heap.VisitObjects(func(obj Object) {
		fn, ok := obj.(*Function)
		if !ok {
			return
		}

		fn.SwitchToLazyCompiledUnoptimizedCode(iso)
		code := fn.CurrentCode()
		clearCode := ctx.isFromDirtyLibrary(fn)
		stubCode := code.IsStub()

		fn.ZeroEdgeCounters()

		if !stubCode {
			if clearCode {
				fn.ClearICDataArray()
				fn.ClearCode(iso)
			} else {
				// Keep the unoptimized code, lose the stale feedback.
				fn.FillICDataWithSentinels()
			}
		}

		fn.SetUsageCounter(0)
		fn.SetDeoptimizationCounter(0)
		fn.SetOptimizedInstructionCount(0)
		fn.SetOptimizedCallSiteCount(0)
	})
}

func (ctx *ReloadContext) isFromDirtyLibrary(fn *Function) bool {
	cls := fn.Owner()
	if cls == nil {
		return false
	}
	lib := cls.Library()
	if lib == nil {
		return false
	}
	return ctx.IsDirty(lib)
}

// IsDirty reports whether lib is in the reloaded set. Deleted libraries
// (index -1, no longer in the live list) count as dirty.
func (ctx *ReloadContext) IsDirty(lib *Library) bool {
	idx := lib.Index()
	if idx == -1 {
		return true
	}
	if idx < 0 || idx >= len(ctx.libraryInfos) {
		panic(fmt.Sprintf("vm: library %s index %d outside side table", lib.URL, idx))
	}
	return ctx.libraryInfos[idx].dirty
}

// ---------------------------------------------------------------------------
// Lookup for collaborators
// ---------------------------------------------------------------------------

// FindOriginalClass returns the pre-reload class a new class replaced, the
// class itself if it is genuinely new, or nil if unknown. Used by the
// debugger and inspector.
func (ctx *ReloadContext) FindOriginalClass(cls *Class) *Class {
	return ctx.classes.Original(cls)
}

// GetClassForHeapWalkAt resolves a class id against the saved class table
// while a reload is in progress, so a GC-time heap walk sees the stable
// pre-reload classes.
func (iso *Isolate) GetClassForHeapWalkAt(cid ClassID) *Class {
	ctx := iso.reloadContext
	if ctx != nil && ctx.savedClassTable != nil {
		if cid <= illegalCid || int(cid) >= ctx.savedNumCids {
			panic(fmt.Sprintf("vm: heap-walk cid %d outside saved table", cid))
		}
		return ctx.savedClassTable[cid]
	}
	return iso.classTable.At(cid)
}

// visitObjectPointers scans the context's roots: the saved class table,
// the saved library list, and the saved root library.
func (ctx *ReloadContext) visitObjectPointers(visit PointerVisitor) {
	for i, cls := range ctx.savedClassTable {
		if cls != nil {
			ctx.savedClassTable[i] = visit(cls).(*Class)
		}
	}
	for i, lib := range ctx.savedLibraries {
		if lib != nil {
			ctx.savedLibraries[i] = visit(lib).(*Library)
		}
	}
	if ctx.savedRootLibrary != nil {
		ctx.savedRootLibrary = visit(ctx.savedRootLibrary).(*Library)
	}
}

// ---------------------------------------------------------------------------
// Reporting
// ---------------------------------------------------------------------------

// ReportError records the first error of the reload and publishes it over
// the service event channel. Subsequent errors are dropped: only one
// error is reported per reload.
func (ctx *ReloadContext) ReportError(err *ReloadError) {
	if ctx.hasError {
		return
	}
	ctx.hasError = true
	ctx.err = err
	ctx.trace("---- ERROR: %s", err.Message)
	ctx.iso.publishEvent(newReloadErrorEvent(ctx, err))
}

// ReportSuccess publishes the reload-succeeded event. Called exactly once,
// as the last step of PostCommit.
func (ctx *ReloadContext) ReportSuccess() {
	ctx.trace("---- RELOAD SUCCEEDED")
	ctx.iso.publishEvent(newReloadSuccessEvent(ctx))
}

// recordHistory journals the reload outcome if a history store is
// attached.
func (iso *Isolate) recordHistory(ctx *ReloadContext) {
	if iso.history == nil {
		return
	}
	rec := &ReloadRecord{
		ID:           ctx.id,
		IsolateID:    iso.ID,
		RootURL:      ctx.scriptURL,
		NumClasses:   iso.classTable.NumCids(),
		NumLibraries: len(iso.store.libraries),
		Duration:     time.Since(ctx.started),
		When:         ctx.started,
	}
	if ctx.hasError {
		rec.Status = ReloadFailed
		rec.Error = ctx.err.Error()
	} else {
		rec.Status = ReloadSucceeded
	}
	if err := iso.history.Record(rec); err != nil {
		reloadLog.Errorf("recording reload history: %v", err)
	}
}
