// Package newsletter wires the engine components together and runs the
// personalized send cycle.
//
// An Engine owns one experiment registry, one analytics service, one
// segmentation engine and one personalization scorer. Nothing here is a
// package-level singleton, so several engines can live side by side.
package newsletter
