// Package render turns a finished clip graph into media files.
//
// Every node that is not already cached is rendered to an intermediate
// payload inside its cache entry by one ffmpeg job. Jobs run on a bounded
// runner.Pool; a node is dispatched once all of its inputs have committed
// their payloads, so siblings render concurrently while dependencies always
// finish first. The root payload is then encoded (or copied) to the requested
// output path.
package render
