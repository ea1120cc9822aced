// Package config loads relay configuration from an optional JSON file with
// a COURIER_* environment overlay, and resolves OS-appropriate default data
// directories.
package config
