package vm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrErroneousClass is returned when initializing a class whose earlier
// initialization failed.
var ErrErroneousClass = errors.New("class initialization failed earlier")

type initState int

const (
	initPending initState = iota
	initInProgress
	initDone
	initFailed
)

// classInit is the per-class initialization lock of JVMS §5.5.
type classInit struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state initState
	owner uuid.UUID
	err   error
}

func (ci *classInit) wait() {
	if ci.cond == nil {
		ci.cond = sync.NewCond(&ci.mu)
	}
	ci.cond.Wait()
}

func (ci *classInit) broadcast() {
	if ci.cond != nil {
		ci.cond.Broadcast()
	}
}

// ShouldBeInitialized reports whether c has not finished initialization.
func (c *Class) ShouldBeInitialized() bool {
	c.init.mu.Lock()
	defer c.init.mu.Unlock()
	return c.init.state != initDone
}

// ClinitRunner executes a class initializer. The interpreter implements it.
type ClinitRunner interface {
	RunClinit(t *Thread, c *Class, clinit *Method) error
}

// ClinitFunc adapts a function to ClinitRunner.
type ClinitFunc func(t *Thread, c *Class, clinit *Method) error

func (f ClinitFunc) RunClinit(t *Thread, c *Class, clinit *Method) error { return f(t, c, clinit) }

// Initialize runs the initialization procedure for c on thread t.
//
// Exactly one thread runs <clinit>. A recursive request from that thread
// returns immediately; other threads block until it finishes. The super
// class is initialized first. A failed initialization leaves the class
// erroneous and every later attempt fails.
func (vm *VM) Initialize(t *Thread, c *Class) error {
	ci := &c.init
	ci.mu.Lock()
	for {
		switch ci.state {
		case initDone:
			ci.mu.Unlock()
			return nil
		case initFailed:
			err := ci.err
			ci.mu.Unlock()
			return fmt.Errorf("initialize %s: %w: %w", c.name, ErrErroneousClass, err)
		case initInProgress:
			if ci.owner == t.ID() {
				ci.mu.Unlock()
				return nil
			}
			ci.wait()
		case initPending:
			ci.state = initInProgress
			ci.owner = t.ID()
			ci.mu.Unlock()

			err := vm.runInitializer(t, c)

			ci.mu.Lock()
			if err != nil {
				ci.state = initFailed
				ci.err = err
				log.Errorf("initialization of %s failed on %s: %v", c.name, t, err)
			} else {
				ci.state = initDone
			}
			ci.owner = uuid.Nil
			ci.broadcast()
			ci.mu.Unlock()
			return err
		}
	}
}

func (vm *VM) runInitializer(t *Thread, c *Class) error {
	if c.super != nil && !c.IsInterface() {
		if err := vm.Initialize(t, c.super); err != nil {
			return err
		}
	}
	clinit := c.declaredMethod("<clinit>", "()V")
	if clinit == nil || vm.Clinit == nil {
		log.Debugf("initialized %s (no <clinit> run)", c.name)
		return nil
	}
	log.Infof("running %s.<clinit> on %s", c.name, t)
	if err := vm.Clinit.RunClinit(t, c, clinit); err != nil {
		return fmt.Errorf("initialize %s: %w", c.name, err)
	}
	return nil
}
