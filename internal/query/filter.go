package query

import (
	"bytes"
	"encoding/json"
)

// Operators understood by the tracking service
const (
	OpIn  = "$in"
	OpGTE = "$gte"
	OpLTE = "$lte"
	OpOr  = "$or"
)

// Op is one comparison applied to a key
type Op struct {
	Operator string
	Value    interface{}
}

// Condition constrains one key. With no Ops the key must equal Eq.
type Condition struct {
	Key string
	Eq  interface{}
	Ops []Op
}

// Equal returns an equality condition
func Equal(key string, v interface{}) Condition {
	return Condition{Key: key, Eq: v}
}

// In returns a set membership condition
func In(key string, values interface{}) Condition {
	return Condition{Key: key, Ops: []Op{{Operator: OpIn, Value: values}}}
}

// Clause is a conjunction of conditions rendered as one object
type Clause []Condition

// Filter is the remote run filter: an OR over Groups, AND-combined with
// every entry of Conditions. Order is preserved when rendered.
type Filter struct {
	Groups     []Clause
	Conditions []Condition
}

// Empty reports whether the filter matches every run
func (f Filter) Empty() bool {
	return len(f.Groups) == 0 && len(f.Conditions) == 0
}

// String renders the filter as JSON
func (f Filter) String() string {
	b, err := json.Marshal(f)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// MarshalJSON renders the filter as a single ordered object
func (f Filter) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	if len(f.Groups) > 0 {
		if err := w.field(OpOr, f.Groups); err != nil {
			return nil, err
		}
	}
	for _, c := range f.Conditions {
		if err := w.field(c.Key, c.value()); err != nil {
			return nil, err
		}
	}
	return w.close(), nil
}

// MarshalJSON renders the clause as a single ordered object
func (c Clause) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	for _, cond := range c {
		if err := w.field(cond.Key, cond.value()); err != nil {
			return nil, err
		}
	}
	return w.close(), nil
}

func (c Condition) value() interface{} {
	if len(c.Ops) == 0 {
		return c.Eq
	}
	return opList(c.Ops)
}

type opList []Op

func (o opList) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	for _, op := range o {
		if err := w.field(op.Operator, op.Value); err != nil {
			return nil, err
		}
	}
	return w.close(), nil
}

// objectWriter emits JSON objects with keys in insertion order
type objectWriter struct {
	buf bytes.Buffer
	n   int
}

func newObjectWriter() *objectWriter {
	w := &objectWriter{}
	w.buf.WriteByte('{')
	return w
}

func (w *objectWriter) field(key string, v interface{}) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	val, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if w.n > 0 {
		w.buf.WriteByte(',')
	}
	w.buf.Write(k)
	w.buf.WriteByte(':')
	w.buf.Write(val)
	w.n++
	return nil
}

func (w *objectWriter) close() []byte {
	w.buf.WriteByte('}')
	return w.buf.Bytes()
}
