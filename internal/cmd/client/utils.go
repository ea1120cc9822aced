package client

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	apiclient "github.com/courierd/courier/internal/client"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

// newAPI builds an API client for one command invocation.
func newAPI(baseURL BaseURLFunc) *apiclient.Client {
	return apiclient.New(baseURL(), &http.Client{Timeout: 30 * time.Second})
}

// printJSON pretty-prints a command result.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
