package emu

import (
	"fmt"
	"os"
)

// FrameSink and AudioSink are the frame/audio boundary: small
// single-producer/single-consumer interfaces a host (internal/ui, or a
// headless CLI dumping frames to disk) implements to receive output from
// the orchestrator's own stepping goroutine without reaching into Machine's
// internals.
//
// There is no APU in this core, so AudioSink exists as the documented
// boundary shape but nothing in this package ever calls it; a host wiring
// one up today receives silence. A future APU package would push samples
// through it the same way RunUntilFrame pushes frames through FrameSink.
type FrameSink interface {
	PushFrame(pixels []uint16)
}

type AudioSink interface {
	PushSamples(stereo []float32)
}

// SetFrameSink installs the sink RunUntilFrame notifies after every
// completed frame, in addition to returning the framebuffer directly. nil
// disables notification.
func (m *Machine) SetFrameSink(s FrameSink) { m.frameSink = s }

// SaveStateToFile writes a SaveState blob to path.
func (m *Machine) SaveStateToFile(path string) error {
	data, err := m.SaveState()
	if err != nil {
		return fmt.Errorf("emu: save state to %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("emu: save state to %s: %w", path, err)
	}
	return nil
}

// LoadStateFromFile restores a machine from a file written by
// SaveStateToFile.
func (m *Machine) LoadStateFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("emu: load state from %s: %w", path, err)
	}
	if err := m.LoadState(data); err != nil {
		return fmt.Errorf("emu: load state from %s: %w", path, err)
	}
	return nil
}
