package vm

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// DefaultMaxFrameDepth is the maximum number of nested method calls.
const DefaultMaxFrameDepth = 1024

// ErrStackOverflow is returned by PushFrame when the depth limit is reached.
var ErrStackOverflow = errors.New("stack overflow")

// Thread is one interpreter thread and its call-frame history. A Thread is
// owned by a single goroutine; nothing here is safe for concurrent use.
type Thread struct {
	id       uuid.UUID
	name     string
	frames   []*Frame
	maxDepth int
}

// NewThread creates a thread with a fresh identity. maxDepth <= 0 selects
// DefaultMaxFrameDepth.
func NewThread(name string, maxDepth int) *Thread {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxFrameDepth
	}
	return &Thread{
		id:       uuid.New(),
		name:     name,
		maxDepth: maxDepth,
	}
}

// ID returns the thread's unique identity.
func (t *Thread) ID() uuid.UUID { return t.id }

func (t *Thread) Name() string { return t.name }

// PushFrame enters a method.
func (t *Thread) PushFrame(f *Frame) error {
	if len(t.frames) >= t.maxDepth {
		return fmt.Errorf("%w: frame depth exceeded %d", ErrStackOverflow, t.maxDepth)
	}
	t.frames = append(t.frames, f)
	return nil
}

// PopFrame leaves the current method and returns its frame.
func (t *Thread) PopFrame() *Frame {
	if len(t.frames) == 0 {
		return nil
	}
	f := t.frames[len(t.frames)-1]
	t.frames[len(t.frames)-1] = nil
	t.frames = t.frames[:len(t.frames)-1]
	return f
}

// Current returns the innermost frame, or nil.
func (t *Thread) Current() *Frame {
	if len(t.frames) == 0 {
		return nil
	}
	return t.frames[len(t.frames)-1]
}

// Depth returns the number of active frames.
func (t *Thread) Depth() int { return len(t.frames) }

// Frames returns the active frames ordered innermost first.
func (t *Thread) Frames() []*Frame {
	out := make([]*Frame, len(t.frames))
	for i, f := range t.frames {
		out[len(t.frames)-1-i] = f
	}
	return out
}

func (t *Thread) String() string {
	return fmt.Sprintf("%s[%s]", t.name, t.id)
}
