// Command scriptycut renders video projects described as clip graphs.
//
// A project file names clips (media files, pictures, generated sources) and
// composes them with sequences, slices, overlays, scaling and crossfades.
// The render command materializes every node once into the clip cache and
// encodes the root to the output file. Subcommands inspect the graph, probe
// media, report ffmpeg capabilities, and manage the cache and job history.
package main
