package vm

import "sync"

// ---------------------------------------------------------------------------
// ICData: per-call-site type feedback
// ---------------------------------------------------------------------------

// icCheck is one recorded (argument classes -> target) entry.
type icCheck struct {
	cids   []ClassID
	target *Function
}

// ICData is the type-feedback record for a single call site of unoptimized
// code. It encodes the old class topology, so a reload must reset it.
type ICData struct {
	ObjectHeader

	owner         *Function
	deoptID       int
	Selector      string
	NumArgsTested int
	isStaticCall  bool

	checks []icCheck

	// sentinel marks a site scrubbed by FillICDataWithSentinels: the site
	// is valid but carries no feedback.
	sentinel bool
}

func (iso *Isolate) newICData(owner *Function, deoptID int, site CallSiteDesc) *ICData {
	ic := &ICData{
		owner:         owner,
		deoptID:       deoptID,
		Selector:      site.Selector,
		NumArgsTested: site.NumArgsTested,
		isStaticCall:  site.Kind == SiteUnoptStaticCall,
	}
	iso.heap.allocate(ic, KindICData, 6, GenOld)
	return ic
}

// Owner returns the function this site belongs to.
func (ic *ICData) Owner() *Function { return ic.owner }

// DeoptID returns the call-site id.
func (ic *ICData) DeoptID() int { return ic.deoptID }

// IsStaticCall reports whether this site was emitted as a static call.
func (ic *ICData) IsStaticCall() bool { return ic.isStaticCall }

// NumberOfChecks returns the recorded entry count.
func (ic *ICData) NumberOfChecks() int { return len(ic.checks) }

// HasSentinel reports whether the site was scrubbed to the sentinel state.
func (ic *ICData) HasSentinel() bool { return ic.sentinel }

// AddTarget records a static-call target.
func (ic *ICData) AddTarget(target *Function) {
	ic.sentinel = false
	ic.checks = append(ic.checks, icCheck{target: target})
}

// AddCheck records a dynamic-call entry for the given argument classes.
func (ic *ICData) AddCheck(cids []ClassID, target *Function) {
	ic.sentinel = false
	ic.checks = append(ic.checks, icCheck{cids: cids, target: target})
}

// GetTargetAt returns the target of entry i, or nil.
func (ic *ICData) GetTargetAt(i int) *Function {
	if i < 0 || i >= len(ic.checks) {
		return nil
	}
	return ic.checks[i].target
}

// Lookup returns the recorded target for the given argument classes.
func (ic *ICData) Lookup(cids []ClassID) *Function {
	for _, chk := range ic.checks {
		if len(chk.cids) != len(cids) {
			continue
		}
		match := true
		for i := range cids {
			if chk.cids[i] != cids[i] {
				match = false
				break
			}
		}
		if match {
			return chk.target
		}
	}
	return nil
}

// resetData drops every recorded entry.
func (ic *ICData) resetData() {
	ic.checks = nil
	ic.sentinel = false
}

// fillWithSentinel scrubs the site: entries are dropped and the sentinel
// bit is set, so old feedback can never be confused with fresh feedback.
func (ic *ICData) fillWithSentinel() {
	ic.checks = nil
	ic.sentinel = true
}

// Reset rebinds the site for the post-reload class topology.
//
// Static calls re-resolve the target by selector on the (now replaced)
// owning class; if the target is gone or no longer static the site is left
// unbound and the next invocation re-resolves. A static site whose
// recorded target is an instance function is a super call, which cannot be
// safely rebound here; it is left alone for natural re-resolution.
//
// Dynamic calls are cleared, then two-argument sites on the arithmetic
// selectors are re-seeded with the smi x smi fast path so the static
// prediction that + - == have smi receivers survives the reload.
func (ic *ICData) Reset(iso *Isolate, isStaticCall bool) {
	if isStaticCall {
		oldTarget := ic.GetTargetAt(0)
		if oldTarget == nil {
			return
		}
		if !oldTarget.IsStatic {
			reloadLog.Infof("cannot rebind super-call to %s from %s",
				oldTarget.Name, ic.owner.Name)
			return
		}
		cls := oldTarget.Owner()
		if cls == nil {
			ic.resetData()
			return
		}
		newTarget := cls.LookupStaticFunction(oldTarget.Name)
		if newTarget == nil {
			reloadLog.Infof("cannot rebind static call to %s from %s",
				oldTarget.Name, ic.owner.Name)
			ic.resetData()
			return
		}
		ic.resetData()
		ic.AddTarget(newTarget)
		return
	}

	ic.resetData()

	// Restore the static prediction that + - == have smi receiver and
	// argument.
	if ic.NumArgsTested == 2 {
		switch ic.Selector {
		case "+", "-", "==":
			smi := iso.SmiClass()
			if smi == nil {
				return
			}
			target := smi.LookupDynamicFunction(ic.Selector)
			if target == nil {
				return
			}
			ic.AddCheck([]ClassID{smi.ID(), smi.ID()}, target)
		}
	}
}

func (ic *ICData) VisitPointers(visit PointerVisitor) {
	visitFunctionSlot(visit, &ic.owner)
	for i := range ic.checks {
		if ic.checks[i].target != nil {
			ic.checks[i].target = visit(ic.checks[i].target).(*Function)
		}
	}
}

// ---------------------------------------------------------------------------
// Megamorphic cache
// ---------------------------------------------------------------------------

type megaKey struct {
	cid      ClassID
	selector string
}

// MegamorphicCache is the global fallback table for call sites that have
// overflowed their inline cache. A reload drops the whole table rather
// than rebinding entries: current optimized code makes no more calls after
// the deopt pass, so fresh code simply allocates fresh caches.
type MegamorphicCache struct {
	mu      sync.Mutex
	entries map[megaKey]*Function
}

func newMegamorphicCache() *MegamorphicCache {
	return &MegamorphicCache{entries: make(map[megaKey]*Function)}
}

// Lookup returns the cached target for (cid, selector), or nil.
func (mc *MegamorphicCache) Lookup(cid ClassID, selector string) *Function {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.entries[megaKey{cid, selector}]
}

// Insert records a target for (cid, selector).
func (mc *MegamorphicCache) Insert(cid ClassID, selector string, target *Function) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.entries[megaKey{cid, selector}] = target
}

// Len returns the number of cached entries.
func (mc *MegamorphicCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.entries)
}

func (mc *MegamorphicCache) visitPointers(visit PointerVisitor) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for k, fn := range mc.entries {
		mc.entries[k] = visit(fn).(*Function)
	}
}
