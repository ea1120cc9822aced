package ledger

import "github.com/courierd/courier/pkg/id"

// Key layout, rooted per ledger:
//
//	led/{ledger}/job/{sort}         -> Job JSON       (iterates in creation order)
//	led/{ledger}/guid/{job guid}    -> sort bytes     (GUID -> creation key)
//	led/{ledger}/open/{sort}        -> nil            (non-terminal set, claim scans this)
//	led/{ledger}/deq/{dequeue guid} -> Dequeue JSON
//	led/{ledger}/done/{dequeue guid}-> Completion JSON
//	led/{ledger}/err/{dequeue guid}/{sort} -> AttemptError JSON
//	led/{ledger}/byorigin/{dequeue guid}   -> failure job guid
func ledgerPrefix(name string) string { return "led/" + name + "/" }

func jobKey(name string, sort id.Key) []byte {
	return append([]byte(ledgerPrefix(name)+"job/"), sort[:]...)
}

func jobPrefix(name string) []byte { return []byte(ledgerPrefix(name) + "job/") }

func guidKey(name, jobGUID string) []byte {
	return []byte(ledgerPrefix(name) + "guid/" + jobGUID)
}

func openKey(name string, sort id.Key) []byte {
	return append([]byte(ledgerPrefix(name)+"open/"), sort[:]...)
}

func openPrefix(name string) []byte { return []byte(ledgerPrefix(name) + "open/") }

func dequeueKey(name, dequeueGUID string) []byte {
	return []byte(ledgerPrefix(name) + "deq/" + dequeueGUID)
}

func completionKey(name, dequeueGUID string) []byte {
	return []byte(ledgerPrefix(name) + "done/" + dequeueGUID)
}

func attemptErrKey(name, dequeueGUID string, sort id.Key) []byte {
	return append([]byte(ledgerPrefix(name)+"err/"+dequeueGUID+"/"), sort[:]...)
}

func attemptErrPrefix(name, dequeueGUID string) []byte {
	return []byte(ledgerPrefix(name) + "err/" + dequeueGUID + "/")
}

func byOriginKey(name, originDequeueGUID string) []byte {
	return []byte(ledgerPrefix(name) + "byorigin/" + originDequeueGUID)
}
