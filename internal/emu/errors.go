package emu

import "errors"

// Sentinel error kinds. UnmappedAccess and UnalignedFetch are never
// actually returned by anything in this package — both are host-invisible,
// emulated as openbus reads and hardware rotate/truncate respectively —
// they exist here purely so the full taxonomy has a single place to live
// and so callers that want to errors.Is-match the complete kind list can
// do so without guessing which ones are live.
var (
	ErrLoadError                = errors.New("emu: load error")
	ErrUnmappedAccess           = errors.New("emu: unmapped access")
	ErrUnalignedFetch           = errors.New("emu: unaligned fetch")
	ErrSaveStateVersionMismatch = errors.New("emu: save state version mismatch")
)
