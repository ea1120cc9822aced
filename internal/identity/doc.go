// Package identity is the registry of clients, devices, and queues.
//
// A client is the stable identity behind a network address, created lazily
// on first contact. A device is an announced endpoint, upserted on every
// announcement. A queue is a pure namespace used as a partition key by the
// claim engine.
//
// Device announcement has one side effect beyond the upsert: it re-arms
// failed jobs addressed to or from the device so they become claimable
// again. That re-arm must commit atomically with the upsert, so the upsert
// is exposed as a Tx method writing into a caller-owned batch.
package identity
