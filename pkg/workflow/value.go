package workflow

import (
	"encoding/json"
	"fmt"
)

// Value is the tagged sum every port value takes at runtime: a scalar,
// an array, an object, or a reference to bytes held in the object store.
// Modelling it as an explicit sum (rather than a bare `any`) keeps the
// Object Store boundary — the only place a Ref is dereferenced into bytes
// or materialized back into one — visible in the type system.
type Value struct {
	kind ValueKind

	scalar any
	array  []Value
	object map[string]Value
	ref    *ObjectReference
}

// ValueKind tags which shape a Value currently holds.
type ValueKind int

const (
	KindScalar ValueKind = iota
	KindArray
	KindObject
	KindRef
)

func (k ValueKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindRef:
		return "ref"
	default:
		return "unknown"
	}
}

// NewScalar wraps a string, number, boolean, or nil.
func NewScalar(v any) Value { return Value{kind: KindScalar, scalar: v} }

// NewArray wraps an ordered sequence of values.
func NewArray(items []Value) Value { return Value{kind: KindArray, array: items} }

// NewObject wraps a string-keyed map of values.
func NewObject(fields map[string]Value) Value { return Value{kind: KindObject, object: fields} }

// NewRef wraps a reference to object-store content.
func NewRef(ref *ObjectReference) Value { return Value{kind: KindRef, ref: ref} }

func (v Value) Kind() ValueKind { return v.kind }

// Scalar returns the wrapped scalar and whether v actually holds one.
func (v Value) Scalar() (any, bool) {
	if v.kind != KindScalar {
		return nil, false
	}
	return v.scalar, true
}

// Array returns the wrapped slice and whether v actually holds one.
func (v Value) Array() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.array, true
}

// Object returns the wrapped map and whether v actually holds one.
func (v Value) Object() (map[string]Value, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	return v.object, true
}

// Ref returns the wrapped object reference and whether v actually holds one.
func (v Value) Ref() (*ObjectReference, bool) {
	if v.kind != KindRef {
		return nil, false
	}
	return v.ref, true
}

// IsZero reports whether v is the unset zero Value (scalar nil).
func (v Value) IsZero() bool {
	return v.kind == KindScalar && v.scalar == nil
}

// Interface unwraps v into a plain Go value suitable for JSON encoding or
// for passing to the expr-lang evaluator: scalars pass through, arrays and
// objects recurse, refs become their ObjectReference struct.
func (v Value) Interface() any {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindArray:
		out := make([]any, len(v.array))
		for i, item := range v.array {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.object))
		for k, item := range v.object {
			out[k] = item.Interface()
		}
		return out
	case KindRef:
		return v.ref
	default:
		return nil
	}
}

// valueWire is Value's JSON envelope: the kind tag travels alongside the
// payload so a round trip can tell an empty object from an empty array from
// an unset scalar, none of which Interface() alone can distinguish.
type valueWire struct {
	Kind   ValueKind        `json:"kind"`
	Scalar any              `json:"scalar,omitempty"`
	Array  []Value          `json:"array,omitempty"`
	Object map[string]Value `json:"object,omitempty"`
	Ref    *ObjectReference `json:"ref,omitempty"`
}

// MarshalJSON encodes v as a kind-tagged envelope so node outputs survive
// the DurableStep replay cache and the ExecutionStore's persisted record.
func (v Value) MarshalJSON() ([]byte, error) {
	wire := valueWire{Kind: v.kind}
	switch v.kind {
	case KindScalar:
		wire.Scalar = v.scalar
	case KindArray:
		wire.Array = v.array
	case KindObject:
		wire.Object = v.object
	case KindRef:
		wire.Ref = v.ref
	default:
		return nil, fmt.Errorf("workflow: marshal Value: unknown kind %d", v.kind)
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes a kind-tagged envelope produced by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var wire valueWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch wire.Kind {
	case KindScalar:
		*v = NewScalar(wire.Scalar)
	case KindArray:
		if wire.Array == nil {
			wire.Array = []Value{}
		}
		*v = NewArray(wire.Array)
	case KindObject:
		if wire.Object == nil {
			wire.Object = map[string]Value{}
		}
		*v = NewObject(wire.Object)
	case KindRef:
		*v = NewRef(wire.Ref)
	default:
		return fmt.Errorf("workflow: unmarshal Value: unknown kind %d", wire.Kind)
	}
	return nil
}

// FromInterface lifts a plain Go value (as produced by encoding/json or a
// node's in-process return) into a Value. Maps and slices recurse; an
// *ObjectReference is recognised directly.
func FromInterface(v any) Value {
	switch t := v.(type) {
	case Value:
		return t
	case *ObjectReference:
		return NewRef(t)
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			fields[k] = FromInterface(item)
		}
		return NewObject(fields)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromInterface(item)
		}
		return NewArray(items)
	default:
		return NewScalar(t)
	}
}
