package cache

import (
	"encoding/json"
	"errors"
	"net"

	"github.com/leonardcser/campaign-mcp/internal/logger"
)

// Serve accepts connections on l and answers Requests against kv until l is closed.
func Serve(l net.Listener, kv KV) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Warnf("cache daemon: accept: %v", err)
			continue
		}
		go handleConn(conn, kv)
	}
}

func handleConn(conn net.Conn, kv KV) {
	defer conn.Close()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			return
		}
		_ = enc.Encode(dispatch(kv, req))
	}
}

func dispatch(kv KV, req Request) Response {
	switch req.Op {
	case OpGet:
		v, err := kv.Get(req.Key)
		if err != nil {
			return Response{Error: err.Error()}
		}
		return Response{OK: true, Value: v}
	case OpSet:
		if err := kv.Set(req.Key, req.Value); err != nil {
			return Response{Error: err.Error()}
		}
		return Response{OK: true}
	case OpClearPrefix:
		n, err := kv.ClearPrefix(req.Prefix)
		if err != nil {
			return Response{Count: n, Error: err.Error()}
		}
		return Response{OK: true, Count: n}
	case OpClear:
		if err := kv.Clear(); err != nil {
			return Response{Error: err.Error()}
		}
		return Response{OK: true}
	case OpSize:
		n, err := kv.Size()
		if err != nil {
			return Response{Error: err.Error()}
		}
		return Response{OK: true, Count: n}
	default:
		return Response{Error: "unknown op"}
	}
}
