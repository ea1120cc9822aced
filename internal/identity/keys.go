package identity

// Key layout for identity rows.
const (
	prefixClientAddr = "id/client/addr/" // {address} -> client guid
	prefixClient     = "id/client/guid/" // {guid} -> Client JSON
	prefixDevice     = "id/device/"      // {guid} -> Device JSON
	prefixPurpose    = "id/purpose/"     // {purpose}/{device guid} -> nil
	prefixQueue      = "id/queue/"       // {guid} -> Queue JSON
)

func clientAddrKey(address string) []byte { return []byte(prefixClientAddr + address) }

func clientKey(guid string) []byte { return []byte(prefixClient + guid) }

func deviceKey(guid string) []byte { return []byte(prefixDevice + guid) }

func purposeKey(purpose, deviceGUID string) []byte {
	return []byte(prefixPurpose + purpose + "/" + deviceGUID)
}

func purposePrefix(purpose string) []byte { return []byte(prefixPurpose + purpose + "/") }

func queueKey(guid string) []byte { return []byte(prefixQueue + guid) }
