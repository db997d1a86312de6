package emu

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/dskellund/gbacore/internal/bus"
	"github.com/dskellund/gbacore/internal/cart"
	"github.com/dskellund/gbacore/internal/cpu"
	"github.com/dskellund/gbacore/internal/ppu"
	"github.com/dskellund/gbacore/internal/scheduler"
)

// saveStateVersion is bumped whenever the envelope's shape changes in a
// way that would make an older save state decode into garbage.
const saveStateVersion = 1

// saveStateEnvelope is the persisted state layout assembled as one gob
// record: every component's own snapshot type, nested rather than
// flattened, so each package continues to own its own serialization
// format (internal/bus, internal/cpu, internal/ppu, internal/cart already
// each gob-encode their own snapshots independently for the same reason a
// save state needs one encoding, not five).
type saveStateEnvelope struct {
	Version   uint32
	Scheduler scheduler.SnapshotState
	Bus       bus.BusSnapshot
	Core      cpu.CoreSnapshot
	PPU       ppu.PPUSnapshot
	Cart      cart.CartridgeSnapshot
}

// SaveState serializes the entire machine. Guarded by the singleflight
// state lock so a concurrent LoadState can't observe it half-written.
func (m *Machine) SaveState() ([]byte, error) {
	return m.states.saveState(func() ([]byte, error) {
		env := saveStateEnvelope{
			Version:   saveStateVersion,
			Scheduler: m.sched.Snapshot(),
			Bus:       m.bus.Snapshot(),
			Core:      m.core.Snapshot(),
			PPU:       m.ppu.Snapshot(),
			Cart:      m.cart.Snapshot(),
		}
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(env); err != nil {
			return nil, fmt.Errorf("emu: encode save state: %w", err)
		}
		return buf.Bytes(), nil
	})
}

// LoadState restores a machine from a SaveState blob. On
// ErrSaveStateVersionMismatch the machine is left untouched, remaining in
// a defined pre-load state.
func (m *Machine) LoadState(data []byte) error {
	return m.states.loadState(func() error {
		var env saveStateEnvelope
		if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
			return fmt.Errorf("emu: decode save state: %w", err)
		}
		if env.Version != saveStateVersion {
			return ErrSaveStateVersionMismatch
		}
		m.sched.Restore(env.Scheduler)
		m.bus.Restore(env.Bus)
		m.core.Restore(env.Core)
		if err := m.ppu.Restore(env.PPU); err != nil {
			return fmt.Errorf("emu: restore ppu: %w", err)
		}
		if err := m.cart.Restore(env.Cart); err != nil {
			return fmt.Errorf("emu: restore cartridge: %w", err)
		}
		return nil
	})
}
