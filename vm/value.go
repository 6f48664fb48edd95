package vm

import "fmt"

// Value represents an Ember runtime value.
//
// A value is either an immediate (SmallInt, Str, Boolean, Nil) or a heap
// Object. Immediates have no identity and are never forwarded; everything
// the reload engine rewrites is a heap object.
type Value interface {
	isValue()
}

// SmallInt is an immediate integer value.
type SmallInt int64

// Str is an immediate string value.
type Str string

// Boolean is an immediate boolean value.
type Boolean bool

// NilValue is the type of the singleton Nil.
type NilValue struct{}

// Nil is the distinguished nil value.
var Nil = NilValue{}

func (SmallInt) isValue() {}
func (Str) isValue()      {}
func (Boolean) isValue()  {}
func (NilValue) isValue() {}

// IsImmediate reports whether v is an immediate (non-heap) value.
func IsImmediate(v Value) bool {
	switch v.(type) {
	case SmallInt, Str, Boolean, NilValue:
		return true
	}
	return false
}

// AsObject returns v as a heap Object, or nil if v is an immediate.
func AsObject(v Value) Object {
	if obj, ok := v.(Object); ok {
		return obj
	}
	return nil
}

// IsNil reports whether v is the nil value.
func IsNil(v Value) bool {
	_, ok := v.(NilValue)
	return ok
}

// ValueString renders a value for diagnostics and trace output.
func ValueString(v Value) string {
	switch val := v.(type) {
	case nil:
		return "<invalid>"
	case NilValue:
		return "nil"
	case SmallInt:
		return fmt.Sprintf("%d", int64(val))
	case Str:
		return string(val)
	case Boolean:
		if val {
			return "true"
		}
		return "false"
	case Object:
		return val.Header().kind.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
