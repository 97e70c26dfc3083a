package cache

// Simple JSON protocol for cache daemon over a Unix domain socket.
// Requests and responses are newline-delimited JSON values; a connection may
// carry any number of request/response pairs.

const (
	OpGet         = "get"
	OpSet         = "set"
	OpClearPrefix = "clear_prefix"
	OpClear       = "clear"
	OpSize        = "size"
)

type Request struct {
	Op     string `json:"op"`
	Key    string `json:"key,omitempty"`
	Prefix string `json:"prefix,omitempty"`
	Value  []byte `json:"value,omitempty"`
}

type Response struct {
	OK    bool   `json:"ok"`
	Value []byte `json:"value,omitempty"`
	Count int    `json:"count,omitempty"`
	Error string `json:"error,omitempty"`
}
