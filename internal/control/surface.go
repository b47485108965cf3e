// Package control routes external commands (OSC addresses, key presses,
// MIDI controllers) to knob and component operations.
package control

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync/atomic"
)

// ErrDuplicateBinding is returned when two operations claim one identifier.
var ErrDuplicateBinding = errors.New("duplicate binding")

// Operation is what a command identifier triggers. args are the command's
// numeric arguments, possibly none.
type Operation func(args ...float64) error

// Dispatcher is the entry point transports call.
type Dispatcher interface {
	Dispatch(id string, args ...float64) (bool, error)
}

// Builder collects bindings. The table it builds never changes.
type Builder struct {
	ops     map[string]Operation
	err     error
	unknown func(id string)
	logger  *log.Logger
	verbose bool
}

func NewBuilder(logger *log.Logger) *Builder {
	if logger == nil {
		logger = log.Default()
	}
	return &Builder{ops: make(map[string]Operation), logger: logger}
}

// Bind maps id to op. Binding an id twice is an error; the first error is
// also reported by Build.
func (b *Builder) Bind(id string, op Operation) error {
	var err error
	switch {
	case id == "":
		err = errors.New("control: empty command identifier")
	case op == nil:
		err = fmt.Errorf("control: nil operation for %q", id)
	default:
		if _, dup := b.ops[id]; dup {
			err = fmt.Errorf("control: %w: %q", ErrDuplicateBinding, id)
		}
	}
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return err
	}
	b.ops[id] = op
	return nil
}

// OnUnknown sets the hook called for identifiers with no binding.
func (b *Builder) OnUnknown(fn func(id string)) { b.unknown = fn }

// Verbose logs every dispatched command.
func (b *Builder) Verbose(v bool) { b.verbose = v }

func (b *Builder) Build() (*Surface, error) {
	if b.err != nil {
		return nil, b.err
	}
	ops := make(map[string]Operation, len(b.ops))
	ids := make([]string, 0, len(b.ops))
	for id, op := range b.ops {
		ops[id] = op
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return &Surface{ops: ops, ids: ids, unknown: b.unknown, logger: b.logger, verbose: b.verbose}, nil
}

// Surface is an immutable command table.
type Surface struct {
	ops     map[string]Operation
	ids     []string
	unknown func(id string)
	logger  *log.Logger
	verbose bool

	handled  atomic.Uint64
	unmapped atomic.Uint64
	failed   atomic.Uint64
}

// Dispatch runs the operation bound to id. Unknown identifiers are not
// errors: Dispatch reports false and calls the unknown hook.
func (s *Surface) Dispatch(id string, args ...float64) (bool, error) {
	op, ok := s.ops[id]
	if !ok {
		s.unmapped.Add(1)
		if s.verbose {
			s.logger.Printf("control: unknown command %q", id)
		}
		if s.unknown != nil {
			s.unknown(id)
		}
		return false, nil
	}
	if s.verbose {
		s.logger.Printf("control: %s %v", id, args)
	}
	if err := op(args...); err != nil {
		s.failed.Add(1)
		return true, fmt.Errorf("%s: %w", id, err)
	}
	s.handled.Add(1)
	return true, nil
}

// IDs lists the bound identifiers in sorted order.
func (s *Surface) IDs() []string { return append([]string(nil), s.ids...) }

type DispatchStats struct {
	Handled uint64 `json:"handled"`
	Unknown uint64 `json:"unknown"`
	Failed  uint64 `json:"failed"`
}

func (s *Surface) Stats() DispatchStats {
	return DispatchStats{Handled: s.handled.Load(), Unknown: s.unmapped.Load(), Failed: s.failed.Load()}
}
