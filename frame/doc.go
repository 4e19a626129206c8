// Package frame mirrors a producer's tree of coordinate frames into a tree that
// consumers can read without locks.
//
// A producer announces batches of newly created frames (Source values, in any order).
// Each batch is registered by one owned task on a sched.Scheduler, with the Mirror as the
// owner token, so batches and their retries never interleave. Registration resolves
// parents within the batch until no progress is made, duplicates each frame as a Node,
// recomputes every derived index and publishes an immutable Snapshot with one atomic
// pointer swap. Readers see either the previous complete tree or the new one.
//
// # Handles
//
// A Handle is the mirror's identity for one full path. Exactly one Handle exists per path
// within a session. Lookup with create=true returns an undefined placeholder for a path
// that has not been announced yet; when a frame with that path (or with a path ending in
// "/"+path) is registered, the same Handle is bound to it in place:
//
//	h := m.Lookup("robot/pelvis", true) // undefined
//	// ... producer announces robot/pelvis ...
//	h.IsDefined() // true, same *Handle
//
// # Under-construction frames
//
// A frame whose parent is missing is dropped with a warning, unless it or one of its
// producer ancestors reports UnderConstruction() == true. Such frames are retried as one
// delayed batch with exponential backoff until their parent appears or the retry budget
// is spent.
//
// # Unique names
//
// Every defined handle gets a UniqueName: the shortest trailing run of path segments that
// is not a trailing run of any other handle's path, or the full path when none is. The
// UniqueShortName abbreviates every non-leaf segment of the unique name to its first
// rune, unless that abbreviation collides with another handle's, in which case it is the
// unique name. Comparison is case-sensitive, so "Arm/x" and "arm/x" are distinct.
//
// # Variable frames
//
// Variable frames recompute their transform from scalar inputs. An input change only
// marks the node dirty; Tick recomputes each dirty node exactly once. Call Tick from the
// render loop, or StartTicking for a headless periodic refresh.
package frame
