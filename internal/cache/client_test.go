package cache

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startDaemon(t *testing.T, kv KV) *Client {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "cache.sock")
	l, err := net.Listen("unix", sock)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- Serve(l, kv) }()
	t.Cleanup(func() {
		_ = l.Close()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("Serve did not return after listener close")
		}
	})
	return NewClient(sock)
}

func TestClient_RoundTrip(t *testing.T) {
	clk := newFakeClock()
	store := openMemory(t, clk)
	c := startDaemon(t, store)

	require.NoError(t, c.Set("campaign|v_inventory|a", []byte("Sword")))
	require.NoError(t, c.Set("campaign|v_inventory|b", []byte("Shield")))
	require.NoError(t, c.Set("campaign|parties|a", []byte("Party")))

	v, err := c.Get("campaign|v_inventory|a")
	require.NoError(t, err)
	assert.Equal(t, "Sword", string(v))

	n, err := c.Size()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = c.ClearPrefix("campaign|v_inventory|")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = c.Get("campaign|v_inventory|a")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Clear())
	n, err = c.Size()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestClient_ExpiredMapsToSentinel(t *testing.T) {
	clk := newFakeClock()
	store := openMemory(t, clk)
	c := startDaemon(t, store)

	require.NoError(t, c.Set("k", []byte("v")))
	clk.Advance(2 * time.Hour)

	_, err := c.Get("k")
	assert.ErrorIs(t, err, ErrExpired)
	assert.True(t, IsMiss(err))
}

func TestClient_DialFailure(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "missing.sock"))
	_, err := c.Get("k")
	require.Error(t, err)
	assert.False(t, IsMiss(err))
}

func TestDispatch_UnknownOp(t *testing.T) {
	resp := dispatch(openMemory(t, newFakeClock()), Request{Op: "explode"})
	assert.False(t, resp.OK)
	assert.Equal(t, "unknown op", resp.Error)
}
