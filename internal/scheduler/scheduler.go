// Package scheduler owns the emulator's single monotonic cycle counter and
// a small event queue used to time PPU, timer, and DMA transitions without
// polling every subsystem on every instruction.
package scheduler

import "sort"

// Kind identifies the source of a scheduled event.
type Kind int

const (
	EventHBlankStart Kind = iota
	EventHBlankEnd
	EventVBlankStart
	EventVBlankEnd
	EventTimer0Overflow
	EventTimer1Overflow
	EventTimer2Overflow
	EventTimer3Overflow
	EventDMA0End
	EventDMA1End
	EventDMA2End
	EventDMA3End
	numKinds
)

// Event is a single due-or-pending entry in the queue.
type Event struct {
	Kind Kind
	At   uint64
}

// maxEvents bounds the queue; the scheduler never needs more than one
// pending entry per Kind plus a little slack.
const maxEvents = 16

// Scheduler tracks elapsed cycles and a flat, sorted slice of pending
// events. A flat array is faster than a heap for queues this small (the
// GBA core never has more than a handful of events in flight at once).
type Scheduler struct {
	cycles uint64
	events []Event
}

// New returns a Scheduler with its cycle counter at zero and no pending events.
func New() *Scheduler {
	return &Scheduler{events: make([]Event, 0, maxEvents)}
}

// Cycles returns the current monotonic cycle count.
func (s *Scheduler) Cycles() uint64 { return s.cycles }

// Reset zeroes the cycle counter and discards all pending events.
func (s *Scheduler) Reset() {
	s.cycles = 0
	s.events = s.events[:0]
}

// Schedule arms an event to fire at absolute cycle "at". If an event of the
// same Kind is already pending it is replaced (re-arming cancels the old one).
func (s *Scheduler) Schedule(kind Kind, at uint64) {
	s.Cancel(kind)
	s.events = append(s.events, Event{Kind: kind, At: at})
	sort.Slice(s.events, func(i, j int) bool { return s.events[i].At < s.events[j].At })
}

// Cancel removes any pending event of the given Kind. A no-op if none is pending.
func (s *Scheduler) Cancel(kind Kind) {
	for i, e := range s.events {
		if e.Kind == kind {
			s.events = append(s.events[:i], s.events[i+1:]...)
			return
		}
	}
}

// Pending reports whether an event of the given Kind is currently armed,
// and the cycle it is due at.
func (s *Scheduler) Pending(kind Kind) (at uint64, ok bool) {
	for _, e := range s.events {
		if e.Kind == kind {
			return e.At, true
		}
	}
	return 0, false
}

// Advance moves the cycle counter forward by n and returns every event
// whose due time is now <= the counter, in non-decreasing time order,
// removing them from the queue. The caller is responsible for re-arming
// any recurring event (e.g. the next HBlank) from its own handler.
func (s *Scheduler) Advance(n uint64) []Event {
	s.cycles += n
	if len(s.events) == 0 {
		return nil
	}
	due := s.events[:0:0]
	remaining := s.events[:0]
	for _, e := range s.events {
		if e.At <= s.cycles {
			due = append(due, e)
		} else {
			remaining = append(remaining, e)
		}
	}
	s.events = remaining
	return due
}

// SnapshotState is the gob-serializable form of Scheduler used by save states.
type SnapshotState struct {
	Cycles uint64
	Events []Event
}

// Snapshot captures the scheduler's state for a save-state envelope.
func (s *Scheduler) Snapshot() SnapshotState {
	evs := make([]Event, len(s.events))
	copy(evs, s.events)
	return SnapshotState{Cycles: s.cycles, Events: evs}
}

// Restore reinstates a previously captured snapshot.
func (s *Scheduler) Restore(snap SnapshotState) {
	s.cycles = snap.Cycles
	s.events = append(s.events[:0], snap.Events...)
}
