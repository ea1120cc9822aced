// Package httpserver provides the REST gateway for the relay: JSON
// endpoints for device announcement, queue registration, the transmission
// and failure-report lifecycles, worker liveness, and admin listings.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: config.Default()})
//	s := httpserver.New(rt)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver
