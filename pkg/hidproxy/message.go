// Package hidproxy implements the small framed protocol
// pkg/hidio's Windows named-pipe backend speaks to an elevated proxy
// process that owns direct HID access (the Windows named-pipe transport in
// SPEC_FULL.md §6.2): a command byte, a big-endian length prefix, and a
// CBOR-encoded payload.
package hidproxy

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

var encMode, _ = cbor.CTAP2EncOptions().EncMode()

// NamedPipePath is the well-known pipe the proxy process listens on.
const NamedPipePath = "\\\\.\\pipe\\ctaphid"

// Command identifies what the proxy should do with a Message.
type Command byte

const (
	// CommandEnumerate asks the proxy to enumerate HID devices on this
	// host and reply with a CBOR-encoded device list.
	CommandEnumerate Command = iota + 1
	// CommandStart asks the proxy to open the device at the given path
	// and begin relaying its reports over this pipe connection.
	CommandStart
)

// Message is one frame of the proxy protocol. Length isn't stored: it's
// always derived from Data, so a caller can't construct a Message whose
// header disagrees with its payload.
type Message struct {
	Command Command
	Data    []byte
}

// NewMessage builds a Message, CBOR-encoding data if non-nil.
func NewMessage(cmd Command, data any) (*Message, error) {
	var payload []byte
	if data != nil {
		encoded, err := encMode.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("hidproxy: encode payload: %w", err)
		}
		payload = encoded
	}
	return &Message{Command: cmd, Data: payload}, nil
}

// ParseMessage reads one framed Message off pipe, using io.ReadFull so a
// short read on a slow or interrupted pipe is treated as an error instead
// of silently returning a truncated command or payload.
func ParseMessage(pipe io.Reader) (*Message, error) {
	var header [3]byte
	if _, err := io.ReadFull(pipe, header[:]); err != nil {
		return nil, fmt.Errorf("hidproxy: read header: %w", err)
	}
	length := binary.BigEndian.Uint16(header[1:3])

	data := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(pipe, data); err != nil {
			return nil, fmt.Errorf("hidproxy: read payload: %w", err)
		}
	}

	return &Message{Command: Command(header[0]), Data: data}, nil
}

// WriteTo writes the message's wire framing to w: one command byte, a
// big-endian uint16 length, then the payload.
func (m *Message) WriteTo(w io.Writer) (int64, error) {
	header := make([]byte, 3)
	header[0] = byte(m.Command)
	binary.BigEndian.PutUint16(header[1:3], uint16(len(m.Data)))

	headerLen, err := w.Write(header)
	if err != nil {
		return int64(headerLen), fmt.Errorf("hidproxy: write header: %w", err)
	}

	dataLen, err := w.Write(m.Data)
	total := int64(headerLen + dataLen)
	if err != nil {
		return total, fmt.Errorf("hidproxy: write payload: %w", err)
	}
	return total, nil
}
