package types

import "fmt"

// CompletedSlot records solve progress for one frame slot. It is created
// when the slot's first phase is solved and persists for the session even
// after both objects are consumed.
type CompletedSlot struct {
	Slot    int
	Fill    int
	Solvers []string
}

// Advance increments the fill count and records the solver name. Fill is
// monotonic: it only ever moves 0→1→2 and a complete slot is immutable.
func (s *CompletedSlot) Advance(solver string) error {
	if s.Fill >= 2 {
		return fmt.Errorf("slot %d is already complete", s.Slot)
	}
	s.Fill++
	s.Solvers = append(s.Solvers, solver)
	return nil
}

// Complete reports whether both phases of the slot are solved.
func (s *CompletedSlot) Complete() bool {
	return s.Fill >= 2
}

// Copy returns a value copy with its own solver slice.
func (s *CompletedSlot) Copy() *CompletedSlot {
	return &CompletedSlot{
		Slot:    s.Slot,
		Fill:    s.Fill,
		Solvers: append([]string(nil), s.Solvers...),
	}
}
