// Package ledger implements the ordered, leased, retryable delivery ledger
// at the heart of courier.
//
// Two mirrored ledgers share one schema and one claim algorithm. The
// delivery ledger holds transmissions; its partition keys are the
// destination device and the queue, so a destination processes messages
// sequentially no matter which queue they arrived through, and a queue
// stays ordered across destinations. The failure ledger holds failure
// reports routed back at the failed transmission's source device, which is
// its single partition key: an origin resolves its failures one at a time.
//
// A claim walks the open set oldest first; any older non-terminal job
// sharing a lane gates everything younger behind it. Selection and lease
// insertion run inside one single-writer store transaction, so two
// concurrent claimants never lease the same job and the gate always sees a
// consistent snapshot. Finding nothing claimable is a normal outcome, not
// an error.
//
// Leases never expire on their own. A crashed claimant leaves its lane
// blocked until the lease is completed or failed out-of-band; correctness
// is preferred over liveness here, and the admin job listing exists to make
// a stalled lane findable.
package ledger
