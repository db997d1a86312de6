package emu

import "golang.org/x/sync/singleflight"

// stateGroup collapses concurrent SaveState/LoadState calls onto a single
// in-flight call. The host UI's menu goroutine and the orchestrator's own
// stepping goroutine can both reach for a save state around the same
// instant (a menu "quicksave" key press lands mid-frame); singleflight
// means the second caller gets the first caller's result instead of the
// two racing against Machine's internal state directly.
//
// This only brackets the save/load boundary, never per-instruction
// stepping — RunUntilFrame and RunCycles never touch it.
const stateKey = "state"

type stateGroup struct {
	g singleflight.Group
}

func (sg *stateGroup) saveState(fn func() ([]byte, error)) ([]byte, error) {
	v, err, _ := sg.g.Do(stateKey, func() (any, error) {
		return fn()
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (sg *stateGroup) loadState(fn func() error) error {
	_, err, _ := sg.g.Do(stateKey, func() (any, error) {
		return nil, fn()
	})
	return err
}
