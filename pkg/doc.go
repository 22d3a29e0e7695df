// Package ddrescue provides the data model and rescue engine behind a
// GNU ddrescue-compatible data recovery copier and its ddrescuelog
// status-file manipulation sibling.
//
// # Core API
//
// A rescue run loads or creates a Mapbook, builds an Engine around it,
// and runs the four-phase state machine to completion:
//
//	mb, err := ddrescue.LoadMapbook(mapfilePath, true)
//	domain, err := ddrescue.NewDomain(0, -1, "")
//	eng := ddrescue.NewEngine(cfg, mb, domain, inPath, inFd, outFd, rateLog, readLog)
//	code, err := eng.Run(ctx)
//
// # Status-File Algebra
//
// Mapfiles are first-class values combined with And, Or, Xor, Invert,
// ChangeTypes, Compare, ListBlocks, CreateFromBlocklist, and Summary.
//
// # Configuration
//
// SetVerboseLevel and SetDebugFlags control package-wide tracing.
// LoadConfig reads the operator's .ddrescuerc defaults.
//
// # Note on Internal API
//
// Types like Mapbook's internal slice layout, BlockSet, and the codec
// helpers are internal implementation details. External consumers should
// primarily use Mapbook, Domain, Engine (and its Config), RcConfig, and
// the algebra functions.
package ddrescue
