package gpio

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Sim is an in-memory chip. Matrix contacts connect an output line to an
// input line; a closed contact pulls the input low while the output is
// driven low. Watched lines are set directly with SetLevel or Turn.
type Sim struct {
	mu       sync.Mutex
	name     string
	start    time.Time
	closed   bool
	outputs  map[int]int
	inputs   map[int]bool
	levels   map[int]int
	contacts map[[2]int]bool
	watchers map[int]EdgeHandler
}

// NewSim returns an empty simulated chip.
func NewSim(name string) *Sim {
	return &Sim{
		name:     name,
		start:    time.Now(),
		outputs:  make(map[int]int),
		inputs:   make(map[int]bool),
		levels:   make(map[int]int),
		contacts: make(map[[2]int]bool),
		watchers: make(map[int]EdgeHandler),
	}
}

func (s *Sim) Name() string { return s.name }

func (s *Sim) Output(offset, initial int) (Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.claimLocked(offset); err != nil {
		return nil, err
	}
	s.outputs[offset] = initial
	return &simOutput{sim: s, offset: offset}, nil
}

func (s *Sim) Input(offset int) (Input, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.claimLocked(offset); err != nil {
		return nil, err
	}
	s.inputs[offset] = true
	return &simInput{sim: s, offset: offset}, nil
}

func (s *Sim) Watch(offset int, handler EdgeHandler) (io.Closer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.claimLocked(offset); err != nil {
		return nil, err
	}
	s.watchers[offset] = handler
	if _, ok := s.levels[offset]; !ok {
		s.levels[offset] = High
	}
	return closerFunc(func() error {
		s.mu.Lock()
		delete(s.watchers, offset)
		s.mu.Unlock()
		return nil
	}), nil
}

func (s *Sim) claimLocked(offset int) error {
	if s.closed {
		return ErrClosed
	}
	if offset < 0 {
		return fmt.Errorf("line %d: invalid offset", offset)
	}
	_, out := s.outputs[offset]
	_, watched := s.watchers[offset]
	if out || s.inputs[offset] || watched {
		return fmt.Errorf("line %d: already requested", offset)
	}
	return nil
}

// Close releases every line. The contact and level model is kept so a
// reopened scanner observes the same switch positions.
func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	clear(s.outputs)
	clear(s.inputs)
	clear(s.watchers)
	return nil
}

// Reopen makes a closed chip usable again.
func (s *Sim) Reopen() {
	s.mu.Lock()
	s.closed = false
	s.mu.Unlock()
}

// SetContact closes or opens the switch between output row and input col.
func (s *Sim) SetContact(row, col int, closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if closed {
		s.contacts[[2]int{row, col}] = true
	} else {
		delete(s.contacts, [2]int{row, col})
	}
}

// Driven reports the current level of an output line.
func (s *Sim) Driven(offset int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	level, ok := s.outputs[offset]
	return level, ok
}

// SetLevel changes a watched line and synchronously delivers the edge.
func (s *Sim) SetLevel(offset, level int) {
	s.mu.Lock()
	prev, ok := s.levels[offset]
	if ok && prev == level {
		s.mu.Unlock()
		return
	}
	s.levels[offset] = level
	handler := s.watchers[offset]
	at := time.Since(s.start)
	s.mu.Unlock()
	if handler != nil {
		handler(Edge{Offset: offset, Level: level, Time: at})
	}
}

// Turn moves the encoder on lines a and b by steps half cycles, each from
// one rest state (both high or both low) to the other. Positive steps lead
// with a, negative with b.
func (s *Sim) Turn(a, b, steps int) {
	lead, lag := a, b
	if steps < 0 {
		lead, lag = b, a
		steps = -steps
	}
	for i := 0; i < steps; i++ {
		s.mu.Lock()
		level, ok := s.levels[lead]
		s.mu.Unlock()
		next := Low
		if ok && level == Low {
			next = High
		}
		s.SetLevel(lead, next)
		s.SetLevel(lag, next)
	}
}

func (s *Sim) read(offset int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	for contact := range s.contacts {
		if contact[1] != offset {
			continue
		}
		if level, ok := s.outputs[contact[0]]; ok && level == Low {
			return Low, nil
		}
	}
	return High, nil
}

type simOutput struct {
	sim    *Sim
	offset int
}

func (o *simOutput) SetValue(level int) error {
	o.sim.mu.Lock()
	defer o.sim.mu.Unlock()
	if o.sim.closed {
		return ErrClosed
	}
	o.sim.outputs[o.offset] = level
	return nil
}

func (o *simOutput) Close() error {
	o.sim.mu.Lock()
	delete(o.sim.outputs, o.offset)
	o.sim.mu.Unlock()
	return nil
}

type simInput struct {
	sim    *Sim
	offset int
}

func (i *simInput) Value() (int, error) {
	return i.sim.read(i.offset)
}

func (i *simInput) Close() error {
	i.sim.mu.Lock()
	delete(i.sim.inputs, i.offset)
	i.sim.mu.Unlock()
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
