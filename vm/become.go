package vm

import "fmt"

// ---------------------------------------------------------------------------
// Bulk one-way identity forwarding
// ---------------------------------------------------------------------------

// ForwardIdentity atomically rebinds identities: after it returns, every
// pointer in the isolate's roots and heap that referenced before[i] now
// references after[i], and each before[i] has been retired in place to a
// forwarding corpse of its original size.
//
// The operation runs inside a stop-the-world safepoint. All validation
// failures are fatal: a partial bulk forward would leave the heap
// inconsistent, so the engine panics instead.
func (iso *Isolate) ForwardIdentity(before, after *Array) {
	if before.Len() != after.Len() {
		panic("become: before/after length mismatch")
	}

	iso.SafepointOperation(func() {
		iso.beginNoSafepoint()
		defer iso.endNoSafepoint()

		if debugChecks {
			// There should be no pointers to forwarding corpses.
			iso.assertNoCorpseTargets("pre")
		}

		// Set up forwarding corpses.
		for i := 0; i < before.Len(); i++ {
			beforeObj := AsObject(before.Elements[i])
			afterObj := after.Elements[i]

			if beforeObj == nil {
				panic("become: cannot forward immediates")
			}
			if Value(beforeObj) == afterObj {
				panic("become: cannot self-forward")
			}
			if beforeObj.Header().IsInternal() {
				panic("become: cannot forward runtime-internal objects")
			}
			if beforeObj.Header().IsCorpse() {
				panic("become: cannot forward to multiple objects")
			}
			afterHeapObj := AsObject(afterObj)
			if afterHeapObj != nil && afterHeapObj.Header().IsCorpse() {
				// The Smalltalk become allows indirect chains; class and
				// library swaps never need them, so prohibit.
				panic("become: no indirect chains of forwarding")
			}
			if beforeObj.Header().Gen() == GenOld &&
				afterHeapObj != nil && afterHeapObj.Header().Gen() == GenYoung {
				// Would require a store-buffer update on every rewritten
				// old-space slot.
				panic("become: old->young forward unimplemented (store buffer)")
			}

			sizeBefore := beforeObj.Header().SizeWords()
			beforeObj.Header().becomeCorpse(afterHeapObj)
			if sizeAfter := beforeObj.Header().SizeWords(); sizeAfter != sizeBefore {
				panic(fmt.Sprintf("become: corpse size changed: %d -> %d", sizeBefore, sizeAfter))
			}
		}

		// Follow forwarding pointers: one pass over roots and heap, one
		// load per rewritten slot.
		forward := func(v Value) Value {
			if obj := AsObject(v); obj != nil && obj.Header().IsCorpse() {
				return obj.Header().ForwardingTarget()
			}
			return v
		}
		iso.VisitObjectPointers(forward)
		iso.heap.VisitObjectPointers(forward)

		if debugChecks {
			// The before array's own slots were rewritten by the pass
			// above, so each must now equal its replacement.
			for i := 0; i < before.Len(); i++ {
				if before.Elements[i] != after.Elements[i] {
					panic(fmt.Sprintf("become: slot %d not forwarded", i))
				}
			}
			iso.assertNoCorpseTargets("post")
		}
	})
}

// assertNoCorpseTargets scans all roots and the heap and panics if any
// pointer slot targets a forwarding corpse.
func (iso *Isolate) assertNoCorpseTargets(phase string) {
	check := func(v Value) Value {
		if obj := AsObject(v); obj != nil && obj.Header().IsCorpse() {
			panic(fmt.Sprintf("become: %s-scan found pointer to corpse (%s)",
				phase, obj.Header().Kind()))
		}
		return v
	}
	iso.VisitObjectPointers(check)
	iso.heap.VisitObjectPointers(check)
}
