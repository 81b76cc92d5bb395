// Package manager owns the single "current pipeline" slot. It is structured
// into small files by concern:
//
//   - manager.go: Manager type, constructor, Acquire and simple getters.
//   - config.go: Config and package defaults.
//   - types.go: State, Snapshot and the reference-counted pipeline handle.
//   - lease.go: Lease, the non-owning reference handed to frame pumps.
//   - load.go: Load, Prewarm and the supervised load task.
//   - unload.go: Unload and Close.
//   - status_report.go: GetStatus/Status snapshot reporting.
//   - errors.go: error kinds and helpers (IsNotFound, IsTimeout, KindOf).
//   - accelerator.go: startup accelerator probe (ResourceUnavailable).
//   - events.go, eventpub_memory.go: lifecycle event publishing.
//   - metrics.go: Prometheus collectors.
//
// Invariants:
//
//   - At most one pipeline is current. Only the manager constructs or closes
//     pipelines; everyone else holds a Lease resolved at point of use.
//   - Every Load bumps the generation. A load task commits only when its
//     generation is still the latest; stale completions are released.
//   - At most one load task constructs at a time: a superseding task is
//     canceled and its successor waits for it to wind down.
//   - Status reads are a single atomic pointer load of an immutable Snapshot.
package manager
