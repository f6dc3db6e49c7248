// Package edit executes named editing commands against the project store.
//
// The Dispatcher is the sole mutation entry point: it validates arguments,
// hashes the pre-state, runs the registered handler inside one store
// transaction, lets the occlusion resolver re-establish the no-overlap
// invariant, hashes the post-state, appends the command to the log, and
// returns a delta. Handler failure rolls the whole transaction back, so a
// failed command leaves no partial state behind.
//
// Handlers are pure functions of (transaction, args); they never log or
// hash. Each handler also produces its algebraic inverse, which the undo
// engine replays to restore the exact pre-command state.
package edit
