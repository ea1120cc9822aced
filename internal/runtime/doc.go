// Package runtime assembles the single-node relay: it opens the Pebble
// store, builds the relay service over it, and carries the loaded
// configuration for the servers and CLI.
package runtime
