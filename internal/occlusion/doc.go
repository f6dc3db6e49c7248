// Package occlusion keeps "clips cannot overlap" a live invariant.
//
// When a clip is placed, moved, or resized, the resolver plans how resident
// clips on the target track must yield: full containment removes them,
// partial overlap trims the overlapping boundary, and a resident spanning
// the whole interval splits into two remainders. The incoming placement
// always wins. The resolver runs inside clip commands, never as a
// standalone user action.
package occlusion
