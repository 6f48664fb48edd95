package vm

import "strings"

// RuntimeScheme is the URL scheme of the runtime's own libraries. Runtime
// libraries are clean: they are never reloaded, never in any identity
// mapping, and never forwarded.
const RuntimeScheme = "ember:"

// Library is a unit of loading, identified structurally by URL. Top-level
// functions and fields live on a synthetic toplevel class so that the
// class machinery (static field migration, patching, IC rebinding) covers
// them with no extra cases.
type Library struct {
	ObjectHeader

	URL string

	// index is the position in the isolate's live library list, or -1 when
	// the library is not in the live list (checkpointed for reload).
	index int

	debuggable bool

	imports []*Library
	exports []*Library

	toplevel *Class
}

// newLibrary allocates the library plus its toplevel class. The caller
// registers the toplevel class in the class table.
func (iso *Isolate) newLibrary(url string) *Library {
	lib := &Library{URL: url, index: -1, debuggable: true}
	iso.heap.allocate(lib, KindLibrary, 8, GenOld)
	script := &Script{URL: url}
	iso.heap.allocate(script, KindScript, 3, GenOld)
	top := iso.NewClass("", lib, script)
	iso.classTable.Register(top)
	lib.toplevel = top
	return lib
}

// IsRuntimeLibrary reports whether this library belongs to the runtime's
// own namespace.
func (lib *Library) IsRuntimeLibrary() bool {
	return strings.HasPrefix(lib.URL, RuntimeScheme)
}

// Index returns the library's position in the live library list, or -1.
func (lib *Library) Index() int { return lib.index }

// SetIndex records the library's position in the live library list.
func (lib *Library) SetIndex(i int) { lib.index = i }

// IsDebuggable reports whether the debugger may stop in this library.
func (lib *Library) IsDebuggable() bool { return lib.debuggable }

// SetDebuggable sets the debuggable bit.
func (lib *Library) SetDebuggable(v bool) { lib.debuggable = v }

// Toplevel returns the class holding the library's top-level functions and
// fields.
func (lib *Library) Toplevel() *Class { return lib.toplevel }

// AddImport appends an import.
func (lib *Library) AddImport(imported *Library) {
	lib.imports = append(lib.imports, imported)
}

// AddExport appends an export.
func (lib *Library) AddExport(exported *Library) {
	lib.exports = append(lib.exports, exported)
}

// Imports returns the import list.
func (lib *Library) Imports() []*Library { return lib.imports }

// LookupLocalFunction finds a top-level function declared in this library.
func (lib *Library) LookupLocalFunction(name string) *Function {
	if lib.toplevel == nil {
		return nil
	}
	return lib.toplevel.LookupFunction(name)
}

// ResolveFunction finds a top-level function visible from this library:
// its own declarations first, then its imports.
func (lib *Library) ResolveFunction(name string) *Function {
	if fn := lib.LookupLocalFunction(name); fn != nil {
		return fn
	}
	for _, imp := range lib.imports {
		if fn := imp.LookupLocalFunction(name); fn != nil {
			return fn
		}
	}
	return nil
}

// ResolveClass finds a class visible from this library by simple name.
func (lib *Library) ResolveClass(name string, iso *Isolate) *Class {
	ct := iso.classTable
	for i := firstUserCid; int(i) < ct.NumCids(); i++ {
		cls := ct.At(i)
		if cls == nil || cls.Name != name {
			continue
		}
		if cls.library == lib {
			return cls
		}
		for _, imp := range lib.imports {
			if cls.library == imp {
				return cls
			}
		}
	}
	return nil
}

func (lib *Library) VisitPointers(visit PointerVisitor) {
	for i := range lib.imports {
		lib.imports[i] = visit(lib.imports[i]).(*Library)
	}
	for i := range lib.exports {
		lib.exports[i] = visit(lib.exports[i]).(*Library)
	}
	visitClassSlot(visit, &lib.toplevel)
}
