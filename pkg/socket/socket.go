// Package socket defines the outbound transport contract a reactive
// query store session binds to, and the JSON frame encoding used to
// write events onto it.
package socket

import (
	"fmt"
	"io"

	gojson "github.com/goccy/go-json"
)

// Socket is the write side of a client's realtime transport connection.
// The store never dials or accepts connections itself — a caller attaches
// an already-open Socket via a session's add_socket call, and the store
// only ever writes frames to it.
type Socket interface {
	io.Writer
}

// WriteEvent encodes event as a single JSON frame and writes it to sock.
// event is typically a map[string]any or a typed payload the transport
// layer already agrees on with clients; it is marshaled with goccy/go-json
// for parity with the rest of the store's wire encoding.
func WriteEvent(sock Socket, event any) error {
	data, err := gojson.Marshal(event)
	if err != nil {
		return fmt.Errorf("socket: encode event: %w", err)
	}
	data = append(data, '\n')
	if _, err := sock.Write(data); err != nil {
		return fmt.Errorf("socket: write frame: %w", err)
	}
	return nil
}
