// Package status declares error constants returned by the engine in
// pkg/core.
//
// NOTE: such constants are located in a separate package to avoid
// creating undue cyclical dependencies between pkg/core and its users.
package status

import "github.com/dragonhoard/dragon/pkg/errors"

var (
	// ErrUnknownCave indicates a cave id or name that is not registered
	ErrUnknownCave = errors.New("unknown cave")

	// ErrCaveBusy indicates the cave already runs a scan or a transfer:
	// operations targeting the same cave are serialized
	ErrCaveBusy = errors.New("cave busy with another operation")

	// ErrScanIO indicates a cave became unreachable or unreadable mid-scan.
	// Paths already re-examined are merged; the rest keep last-known state.
	ErrScanIO = errors.New("scan i/o failure")

	// ErrVerification indicates a fingerprint mismatch: either a landed copy
	// does not carry the expected content, or a local file scheduled for
	// cleanup was edited since last scanned
	ErrVerification = errors.New("content verification mismatch")

	// ErrDivergent indicates the path carries conflicting content across
	// caves and requires explicit resolution
	ErrDivergent = errors.New("path diverged across caves")

	// ErrUnsatisfiable indicates policy wants content that no reachable cave
	// currently provides
	ErrUnsatisfiable = errors.New("want not satisfiable: no cave holds the content")

	// ErrInsufficientRedundancy indicates a cleanup was withheld because it
	// would drop the last remaining copies
	ErrInsufficientRedundancy = errors.New("cleanup withheld: insufficient redundancy")

	// ErrNotDivergent indicates a resolution was requested for a path that
	// does not diverge
	ErrNotDivergent = errors.New("path does not diverge")
)
