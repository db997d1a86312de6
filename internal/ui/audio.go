package ui

import (
	"encoding/binary"
	"sync"
)

// silentStream implements io.Reader for ebiten/v2/audio.Context.NewPlayer.
// It doubles as an emu.AudioSink: PushSamples appends whatever an APU would
// produce, and Read drains that buffer first, falling back to silence.
// There is no APU in this core, so in practice PushSamples is never called
// and every Read returns silence — this exists so the audio boundary
// ebiten/v2/audio is wired against is the real FrameSink/AudioSink
// boundary, not a stub that would need replacing the day an APU package
// shows up.
type silentStream struct {
	mu      sync.Mutex
	pending []float32
	muted   bool
}

func newSilentStream() *silentStream { return &silentStream{} }

// PushSamples implements emu.AudioSink.
func (s *silentStream) PushSamples(stereo []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, stereo...)
}

func (s *silentStream) Read(p []byte) (int, error) {
	if len(p) < 4 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.muted || len(s.pending) == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	n := 0
	for n+3 < len(p) && len(s.pending) >= 2 {
		l := int16(s.pending[0] * 32767)
		r := int16(s.pending[1] * 32767)
		binary.LittleEndian.PutUint16(p[n:], uint16(l))
		binary.LittleEndian.PutUint16(p[n+2:], uint16(r))
		s.pending = s.pending[2:]
		n += 4
	}
	for ; n < len(p); n++ {
		p[n] = 0
	}
	return len(p), nil
}
