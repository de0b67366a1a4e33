// Package experiment implements the A/B experiment registry.
//
// The registry owns experiment definitions, per-recipient assignments and
// the append-only event log. All three live behind one lock so that the
// check-then-insert of Assign is atomic: two concurrent calls for the same
// (experiment, recipient) pair always observe the same variant. Analysis
// copies what it needs under a read lock and computes outside it.
package experiment
