package link

type handleState uint8

const (
	notFound handleState = iota
	found
	notImplemented
)

// Handle is the outcome of one lookup step: a member that was found, or
// the absence of one. Absence is not a failure; the caller moves on to the
// next lookup rule. A step that exists but is deliberately not implemented
// reports NotImplemented, which reads as absent but stays distinguishable.
type Handle[T any] struct {
	v      T
	state  handleState
	reason string
}

// Found wraps a member that was found.
func Found[T any](v T) Handle[T] { return Handle[T]{v: v, state: found} }

// NotFound is the empty handle.
func NotFound[T any]() Handle[T] { return Handle[T]{} }

// NotImplemented is an empty handle produced by a lookup rule that has no
// implementation yet.
func NotImplemented[T any](reason string) Handle[T] {
	return Handle[T]{state: notImplemented, reason: reason}
}

// Maybe returns Found(v) unless v is the zero value.
func Maybe[T comparable](v T) Handle[T] {
	var zero T
	if v == zero {
		return NotFound[T]()
	}
	return Found(v)
}

// IsFound reports whether the handle holds a member.
func (h Handle[T]) IsFound() bool { return h.state == found }

// IsNotImplemented reports whether the handle came from an unimplemented
// lookup rule, and why.
func (h Handle[T]) IsNotImplemented() (string, bool) {
	return h.reason, h.state == notImplemented
}

// Get returns the member and whether there is one.
func (h Handle[T]) Get() (T, bool) { return h.v, h.state == found }

// OrElse returns h if it holds a member and otherwise runs the next lookup.
func (h Handle[T]) OrElse(next func() Handle[T]) Handle[T] {
	if h.IsFound() {
		return h
	}
	return next()
}
