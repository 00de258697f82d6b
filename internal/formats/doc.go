// Package formats models stream formats reported by ffprobe and the
// encoder settings used for final output.
//
// Frame rates are kept as exact fractions; decimal notation such as
// "29.97" is rejected so cache identities never depend on float rounding.
package formats
