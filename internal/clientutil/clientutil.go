// Package clientutil implements the client side of the wire protocol:
// dial, send exactly one framed request, read exactly one framed
// response, close. Used by cmd/kvs-client.
package clientutil

import (
	"fmt"
	"net"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/kvsdb/kvs/internal/kvserr"
	"github.com/kvsdb/kvs/internal/wire"
)

// dialTimeout bounds a single connection attempt.
const dialTimeout = 2 * time.Second

// dial connects to addr, retrying a handful of times with backoff to
// smooth over a server still finishing its bind.
func dial(addr string) (net.Conn, error) {
	return retry.DoWithData(
		func() (net.Conn, error) {
			return net.DialTimeout("tcp", addr, dialTimeout)
		},
		retry.Attempts(3),
		retry.Delay(50*time.Millisecond),
	)
}

// Do sends req to addr over a fresh connection and returns the
// decoded response.
func Do(addr string, req wire.Request) (wire.Response, error) {
	conn, err := dial(addr)
	if err != nil {
		return wire.Response{}, fmt.Errorf("clientutil: dial %s: %w", addr, err)
	}
	defer conn.Close()

	payload, err := wire.Marshal(req)
	if err != nil {
		return wire.Response{}, fmt.Errorf("clientutil: encode request: %w", err)
	}
	if err := wire.WriteFrame(conn, payload); err != nil {
		return wire.Response{}, fmt.Errorf("clientutil: send request: %w", err)
	}

	respPayload, err := wire.ReadFrame(conn)
	if err != nil {
		return wire.Response{}, fmt.Errorf("clientutil: read response: %w", err)
	}
	var resp wire.Response
	if err := wire.Unmarshal(respPayload, &resp); err != nil {
		return wire.Response{}, fmt.Errorf("clientutil: decode response: %w", err)
	}
	return resp, nil
}

// Get issues a Get request. found reports whether the key had a
// value (vs. a bare Ok meaning "not present").
func Get(addr, key string) (val string, found bool, err error) {
	resp, err := Do(addr, wire.GetRequest(key))
	if err != nil {
		return "", false, err
	}
	switch resp.T {
	case "OkVal":
		return resp.Val, true, nil
	case "Ok":
		return "", false, nil
	case "Err":
		return "", false, &kvserr.ServerError{Msg: resp.Err}
	default:
		return "", false, fmt.Errorf("clientutil: unexpected response tag %q", resp.T)
	}
}

// Set issues a Set request.
func Set(addr, key, val string) error {
	resp, err := Do(addr, wire.SetRequest(key, val))
	if err != nil {
		return err
	}
	return asVoidResult(resp)
}

// Remove issues a Remove request.
func Remove(addr, key string) error {
	resp, err := Do(addr, wire.RemoveRequest(key))
	if err != nil {
		return err
	}
	return asVoidResult(resp)
}

func asVoidResult(resp wire.Response) error {
	switch resp.T {
	case "Ok":
		return nil
	case "Err":
		return &kvserr.ServerError{Msg: resp.Err}
	default:
		return fmt.Errorf("clientutil: unexpected response tag %q for void call", resp.T)
	}
}
