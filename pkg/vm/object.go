package vm

import "sync"

// JObject represents a JVM object instance.
type JObject struct {
	Class  *Class
	Fields map[string]Value

	mu       sync.Mutex
	metadata map[string]any
}

// NewObject allocates an instance of c with every declared instance field
// (including inherited ones) set to its zero value.
func NewObject(c *Class) *JObject {
	obj := &JObject{Class: c, Fields: make(map[string]Value)}
	for cur := c; cur != nil; cur = cur.super {
		for _, f := range cur.Fields() {
			if f.IsStatic() {
				continue
			}
			if _, ok := obj.Fields[f.name]; !ok {
				obj.Fields[f.name] = ZeroValue(f.descriptor)
			}
		}
	}
	return obj
}

// ClassName returns the internal name of the object's class.
func (o *JObject) ClassName() string {
	if o.Class == nil {
		return ""
	}
	return o.Class.name
}

// SetMetadata attaches host-side data that has no Java field, such as a
// throwable's captured backtrace.
func (o *JObject) SetMetadata(key string, v any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.metadata == nil {
		o.metadata = make(map[string]any)
	}
	o.metadata[key] = v
}

// Metadata returns data stored by SetMetadata.
func (o *JObject) Metadata(key string) (any, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.metadata[key]
	return v, ok
}

// JArray represents a JVM array.
type JArray struct {
	Class    *Class
	Elements []Value
}
