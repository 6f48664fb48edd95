package vm

import "fmt"

// ---------------------------------------------------------------------------
// Class reconciliation
// ---------------------------------------------------------------------------

// CanReload checks whether old can be replaced by replacement. On a
// violation it reports a compatibility error naming the class and the
// mismatched attribute and returns false, aborting the reload.
func (ctx *ReloadContext) CanReload(old, replacement *Class) bool {
	if debugChecks && keyForClass(old) != keyForClass(replacement) {
		panic("vm: CanReload on structurally different classes")
	}

	if old.IsFinalized() {
		if err := replacement.EnsureIsFinalized(ctx.iso); err != nil {
			ctx.ReportError(&ReloadError{Kind: ErrCompatibility, Message: err.Error()})
			return false
		}
		oldFields := old.OffsetToFieldMap()
		newFields := replacement.OffsetToFieldMap()
		if len(oldFields) != len(newFields) {
			ctx.ReportError(&ReloadError{
				Kind:    ErrCompatibility,
				Message: fmt.Sprintf("Number of instance fields changed in %s", old),
			})
			return false
		}
		for i := range oldFields {
			if oldFields[i] != newFields[i] {
				ctx.ReportError(&ReloadError{
					Kind: ErrCompatibility,
					Message: fmt.Sprintf("Instance field %q moved or renamed to %q in %s",
						oldFields[i], newFields[i], old),
				})
				return false
			}
		}
	} else if old.IsPrefinalized() {
		if !replacement.IsPrefinalized() {
			ctx.ReportError(&ReloadError{
				Kind:    ErrCompatibility,
				Message: fmt.Sprintf("Class finalization state changed in %s", old),
			})
			return false
		}
		if old.InstanceSize() != replacement.InstanceSize() {
			ctx.ReportError(&ReloadError{
				Kind:    ErrCompatibility,
				Message: fmt.Sprintf("Instance size changed in %s", old),
			})
			return false
		}
	}

	if old.NumNativeFields() != replacement.NumNativeFields() {
		ctx.ReportError(&ReloadError{
			Kind:    ErrCompatibility,
			Message: fmt.Sprintf("Number of native fields changed in %s", old),
		})
		return false
	}
	return true
}

// PatchFieldsAndFunctions moves all of old's functions and fields onto a
// patch record bound to old and its original script. The old entities stay
// well-formed for debuggers and for surviving closures; when old is later
// forwarded, the patch record's class slot flips to the replacement.
func (ctx *ReloadContext) PatchFieldsAndFunctions(old *Class) {
	patch := &PatchRecord{PatchedClass: old, Script: old.script}
	ctx.iso.heap.allocate(patch, KindPatchRecord, 3, GenOld)

	for _, fn := range old.functions {
		fn.setOwner(patch)
	}
	for _, f := range old.fields {
		f.owner = patch
	}
}

// CopyStaticFieldValues migrates static field values from old to
// replacement, matching by field name. Each migrated pair is also
// enqueued in the become map so references to the old static-field object
// (captured by closures, for instance) are retargeted.
func (ctx *ReloadContext) CopyStaticFieldValues(replacement, old *Class) {
	for _, field := range replacement.fields {
		if !field.IsStatic {
			continue
		}
		for _, oldField := range old.fields {
			if !oldField.IsStatic || oldField.Name != field.Name {
				continue
			}
			field.SetStaticValue(oldField.StaticValue())
			ctx.become.Add(oldField, field)
		}
	}
}

// CopyCanonicalConstants carries the old class's canonical constants over
// to the replacement.
func (ctx *ReloadContext) CopyCanonicalConstants(replacement, old *Class) {
	replacement.constants = old.constants
}

// ReplaceEnum migrates enum values from old to replacement so existing
// enum instances keep their identity: each named constant present in both
// versions keeps the old instance, and the old field object is enqueued
// in the become map so closures and state that captured it are retargeted.
// Constants new to the replacement keep their freshly allocated instances.
func (ctx *ReloadContext) ReplaceEnum(replacement, old *Class) {
	if !replacement.IsEnum() || !old.IsEnum() {
		panic("vm: ReplaceEnum on non-enum class")
	}
	for _, field := range replacement.fields {
		if !field.IsStatic {
			continue
		}
		for _, oldField := range old.fields {
			if !oldField.IsStatic || oldField.Name != field.Name {
				continue
			}
			field.SetStaticValue(oldField.StaticValue())
			ctx.become.Add(oldField, field)
		}
	}
}
