// Package transport implements the device wire protocol: length-prefixed
// framing (an 8-byte big-endian packet count, then per packet an 8-byte
// big-endian length and the payload bytes) and the closed set of payload
// shapes delivered over it.
//
// The relay's own delivery loops only ever send JSONPayload. BundlePayload
// is part of the wire agreement with devices (multi-frame archive pushes
// originate device-side) and is kept here so both ends decode the same
// closed set.
package transport
