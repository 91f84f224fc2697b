// Package ipc owns the raw unix-socket channels to the compositor: a
// synchronous request/reply client and a long-lived inbound event stream.
// It carries opaque framed messages and knows nothing about their meaning.
package ipc

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Message is one framed unit on the wire. Type is only meaningful for
// framings that carry a message type (i3-ipc); newline and raw framings
// leave it zero.
type Message struct {
	Type    uint32
	Payload []byte
}

// Framing encodes and decodes messages on a stream. Implementations must be
// stateless and safe for concurrent use on distinct streams.
type Framing interface {
	WriteMessage(w *bufio.Writer, m Message) error
	ReadMessage(r *bufio.Reader) (Message, error)
}

// NewlineFraming delimits messages with '\n'. Used by Hyprland's event
// socket and both directions of Niri's socket.
type NewlineFraming struct{}

func (NewlineFraming) WriteMessage(w *bufio.Writer, m Message) error {
	if _, err := w.Write(m.Payload); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

func (NewlineFraming) ReadMessage(r *bufio.Reader) (Message, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			// Final unterminated record before close.
			return Message{Payload: line}, nil
		}
		return Message{}, err
	}
	return Message{Payload: bytes.TrimRight(line, "\n")}, nil
}

// RawFraming writes the payload unterminated and reads the reply until the
// peer closes the connection. Hyprland's control socket answers one request
// per connection this way.
type RawFraming struct{}

func (RawFraming) WriteMessage(w *bufio.Writer, m Message) error {
	_, err := w.Write(m.Payload)
	return err
}

func (RawFraming) ReadMessage(r *bufio.Reader) (Message, error) {
	payload, err := io.ReadAll(r)
	if err != nil {
		return Message{}, err
	}
	return Message{Payload: payload}, nil
}

// i3-ipc header: 6 magic bytes, then payload length and message type as
// little-endian uint32.
const i3HeaderLen = 14

var i3Magic = []byte("i3-ipc")

// I3Framing is the binary framing shared by i3 and Sway.
type I3Framing struct{}

func (I3Framing) WriteMessage(w *bufio.Writer, m Message) error {
	header := make([]byte, i3HeaderLen)
	copy(header[0:6], i3Magic)
	binary.LittleEndian.PutUint32(header[6:10], uint32(len(m.Payload)))
	binary.LittleEndian.PutUint32(header[10:14], m.Type)
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(m.Payload)
	return err
}

func (I3Framing) ReadMessage(r *bufio.Reader) (Message, error) {
	header := make([]byte, i3HeaderLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return Message{}, err
	}
	if !bytes.Equal(header[0:6], i3Magic) {
		return Message{}, fmt.Errorf("bad ipc magic %q", header[0:6])
	}
	length := binary.LittleEndian.Uint32(header[6:10])
	msgType := binary.LittleEndian.Uint32(header[10:14])
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Message{}, err
	}
	return Message{Type: msgType, Payload: payload}, nil
}
