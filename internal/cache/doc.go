// Package cache stores rendered clip payloads in content-addressed entry
// directories under a single root.
//
// An entry directory is named from the node class and a SHA-256 digest of
// (class, format version, identity), so identical nodes always land in the
// same place across runs. Every Resolve marks the entry as touched for the
// current run; at teardown, anything in the root that was not touched is
// discarded. Only one Cache may own a root at a time. The CLI serialises runs
// with a lock file beside the root; the cache itself does not check.
package cache
