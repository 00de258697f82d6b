// Package clip models a composition as an immutable graph of clip nodes.
//
// Every node is built through a Context, which owns the content cache, the
// media prober, and the default frame-rate hint. Building a node computes its
// flags and canonical identity, then resolves (but never fills) its cache
// entry. Construction problems fail immediately with one of the Err* kinds;
// unreadable sources do not fail, they set MissingResource instead.
//
// Nodes are safe to share between goroutines once built. PlayOrder and
// Dependencies walk a graph lazily and can be ranged over any number of times.
package clip
