// Package preflight provides readiness checks for the binaries and
// filesystem paths scriptycut depends on.
//
// These checks run in two contexts:
//   - The render command calls RunAll before building the clip graph.
//     If any check fails, the render stops before touching the cache.
//   - The CLI "scriptycut status" command uses the same checks to display
//     tool and directory health.
package preflight
