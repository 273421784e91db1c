package ctaphid

import "errors"

// Sentinel transport-layer errors, aligned with the CTAPHID status byte
// taxonomy in spec §7. CTAP2-layer errors (0x10..0x3E) are not sentinels:
// they pass through as the terminal StatusCode of a CBOR exchange instead.
var (
	ErrMessageTooLarge       = errors.New("ctaphid: message payload exceeds 7609 bytes")
	ErrInvalidLength         = errors.New("ctaphid: invalid message or payload length")
	ErrInvalidSeq            = errors.New("ctaphid: continuation frame has an unexpected sequence number")
	ErrTimeout               = errors.New("ctaphid: receive deadline exceeded")
	ErrOther                 = errors.New("ctaphid: transport or hardware failure")
	ErrUnexpectedCommand     = errors.New("ctaphid: response carried an unexpected command")
	ErrInvalidResponseLength = errors.New("ctaphid: response message had no payload")
	ErrShortWrite            = errors.New("ctaphid: report write did not transfer a full frame")
)

// TransportError reports a CTAPHID_ERROR frame received in place of the
// expected response, carrying the transport-level status byte it named.
type TransportError struct {
	Command Command
	Status  StatusCode
}

func (e *TransportError) Error() string {
	return e.Command.String() + " rejected: " + e.Status.String()
}

// KeepaliveError is returned when a keepalive frame during a CBOR exchange
// carries a payload the classifier does not recognize (wrong length or an
// unknown status byte).
type KeepaliveError struct {
	Payload []byte
}

func (e *KeepaliveError) Error() string {
	return "ctaphid: malformed keepalive payload"
}

func (e *KeepaliveError) Unwrap() error {
	return ErrOther
}
