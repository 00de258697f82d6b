// Package services defines shared utilities consumed by the clip graph, the
// renderer and the external tool wrappers.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, node cache keys, and job identifiers
//     for logging and the job journal.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent journal outcomes (failed, invalid, timeout).
//
// Use these helpers when wiring new components so operational behaviour (error
// handling, observability) stays uniform across the tool.
package services
