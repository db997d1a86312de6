package ui

import (
	"github.com/dskellund/gbacore/internal/emu"
	"github.com/hajimehoshi/ebiten/v2"
)

// pollButtons reads the host keyboard into a Buttons mask, adapted from the
// teacher's Update()'s inline arrow/Z/X/Enter/Shift polling, extended with
// the GBA's extra R/L shoulder buttons.
func pollButtons() emu.Buttons {
	return emu.Buttons{
		Up:     ebiten.IsKeyPressed(ebiten.KeyUp),
		Down:   ebiten.IsKeyPressed(ebiten.KeyDown),
		Left:   ebiten.IsKeyPressed(ebiten.KeyLeft),
		Right:  ebiten.IsKeyPressed(ebiten.KeyRight),
		A:      ebiten.IsKeyPressed(ebiten.KeyZ),
		B:      ebiten.IsKeyPressed(ebiten.KeyX),
		Start:  ebiten.IsKeyPressed(ebiten.KeyEnter),
		Select: ebiten.IsKeyPressed(ebiten.KeyShiftRight),
		L:      ebiten.IsKeyPressed(ebiten.KeyA),
		R:      ebiten.IsKeyPressed(ebiten.KeyS),
	}
}
