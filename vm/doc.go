// Package vm implements the Ember isolate runtime and its live program
// reload engine.
//
// An Isolate owns a walkable heap, an index-based class table, and a
// library list. The reload engine (ReloadContext) atomically rebinds a
// running program to a new version of its source: existing instances keep
// their identity, static field values survive, and the call stack resumes
// in the new program. The heavy lifting is done by a Smalltalk-style bulk
// identity forward (become.go): old classes, libraries, and static fields
// are retired to forwarding corpses and every reference in the roots and
// heap is rewritten in a single pass.
//
// Parsing source into classes and libraries is not part of this package;
// new program versions enter through the isolate's library tag handler.
package vm
