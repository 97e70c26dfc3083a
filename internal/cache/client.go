package cache

import (
	"encoding/json"
	"errors"
	"net"
	"time"
)

var _ KV = (*Client)(nil)

// Client implements KV over a Unix socket served by Serve.
type Client struct {
	socketPath string
	timeout    time.Duration
}

func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: 2 * time.Second}
}

func (c *Client) roundTrip(req Request) (Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, 500*time.Millisecond)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	if err := json.NewEncoder(conn).Encode(&req); err != nil {
		return Response{}, err
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, err
	}
	if !resp.OK {
		return resp, remoteError(resp.Error)
	}
	return resp, nil
}

func (c *Client) Get(key string) ([]byte, error) {
	resp, err := c.roundTrip(Request{Op: OpGet, Key: key})
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), resp.Value...), nil
}

func (c *Client) Set(key string, value []byte) error {
	_, err := c.roundTrip(Request{Op: OpSet, Key: key, Value: value})
	return err
}

func (c *Client) ClearPrefix(prefix string) (int, error) {
	resp, err := c.roundTrip(Request{Op: OpClearPrefix, Prefix: prefix})
	return resp.Count, err
}

func (c *Client) Clear() error {
	_, err := c.roundTrip(Request{Op: OpClear})
	return err
}

func (c *Client) Size() (int, error) {
	resp, err := c.roundTrip(Request{Op: OpSize})
	return resp.Count, err
}

// remoteError maps daemon error strings back onto the package sentinels.
func remoteError(msg string) error {
	switch msg {
	case ErrNotFound.Error():
		return ErrNotFound
	case ErrExpired.Error():
		return ErrExpired
	}
	return errors.New(msg)
}
