// Package unit discovers and loads collection units.
//
// A unit is an independently authored routine that returns raw records.
// Units come from two places:
//
//   - Script units: Go source files listed in the manifest and interpreted
//     with yaegi. Each script gets its own interpreter, so package-level
//     state of one script is invisible to every other script. The entry
//     point is the top-level function Collect.
//   - Builtin units: Go functions registered in a Catalog at compile time and
//     referenced from the manifest as "builtin:<name>".
//
// # Manifest Format
//
// One location per line. Blank lines and lines starting with '#' are
// ignored. Relative paths resolve against the registry's base directory.
// Lines naming a missing file, a file without the .go extension, an unknown
// builtin, or a location already listed are skipped with a warning; they
// never abort the run.
//
// # Entry Point Shapes
//
// The loader accepts Collect with zero arguments or a single
// context.Context, returning T, (T, error), <-chan T or (<-chan T, error).
// The channel forms are the deferred shape: the first value received is the
// unit's output. Every shape is adapted to a CallFunc or an AsyncFunc;
// running them under a deadline is the runner package's job.
package unit
