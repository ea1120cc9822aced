// Package client provides the `courier` command-line client.
//
// The CLI talks to the courier HTTP API to perform common relay
// operations from a terminal. It is primarily intended for developers
// and operators.
//
// Installation
//
//	go install github.com/courierd/courier/cmd/courier@latest
//
// # Address configuration
//
// The HTTP base URL is discovered by the application that embeds the
// commands via a BaseURLFunc. When using the standalone binary, it is
// read from the COURIER_HTTP environment variable (default
// http://127.0.0.1:8080).
//
// Usage
//
//	courier queue create --guid readings
//
//	courier device announce --guid thermostat-1 --purpose thermostat --port 9000
//	courier device list --purpose thermostat
//
//	courier device send \
//	    --queue readings --source thermostat-1 --dest display-1 \
//	    --payload '{"temp":21.5}'
//
//	# Long-running delivery loops
//	courier worker work --guid w1 --queue readings
//	courier worker report --guid r1
//	courier worker list --kind dequeuer
//
//	# Ledger inspection with a server-side CEL filter
//	courier admin jobs --ledger delivery --filter 'phase == "pending"'
//	courier admin jobs --ledger failure --limit 10
//
// Notes
//
//   - worker work delivers claimed payloads to the destination device's
//     announced address and port over the framed socket protocol, then
//     writes the outcome back to the relay.
//   - worker report pushes failure reports to the origin device and
//     records the device's retry decision.
package client
