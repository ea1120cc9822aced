// Package id provides 16-byte, lexicographically sortable creation keys.
//
// Ledger rows are stored under keys whose byte order must match creation
// order, so iteration over a key range visits jobs oldest-first. A Key is
// [8 bytes unix_ms][8 bytes sequence], big-endian; the Generator keeps keys
// strictly increasing per process even across clock regressions.
//
// Keys are internal sort keys only. Externally visible identifiers are
// GUIDs; the ledger maps between the two through its own index.
package id
