// Package pebblestore provides a thin wrapper around Pebble with an fsync
// policy, snapshots, batches, and prefix-scan helpers.
//
// The ledger stores every row under a prefixed key and commits each mutating
// operation as one batch, so the wrapper's job is keeping durability policy
// and iteration bounds in one place:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   pebblestore.FsyncModeAlways,
//	})
//	defer db.Close()
//
//	b := db.NewBatch()
//	_ = b.Set([]byte("k"), []byte("v"), nil)
//	_ = db.CommitBatch(context.Background(), b)
//	b.Close()
package pebblestore
