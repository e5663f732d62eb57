// Package output encodes command results and writes them to a destination.
//
// Encoders are looked up by format name in a [Registry]; the default
// registry knows yaml and json. A [Writer] sends the encoded bytes to a
// stream or, through [FileWriter], to a file on disk.
package output
