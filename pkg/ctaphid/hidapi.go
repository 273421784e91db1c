package ctaphid

import "time"

// Device is the HID adapter contract the transport core consumes. The
// underlying OS HID library (opening a path, enumerating by usage page) is
// an external collaborator; a Device is already bound to one opened handle.
//
// ReadTimeout follows Go convention rather than the source's sentinel
// return codes (-1 for a hardware error, 0 for a timeout): it returns
// ErrTimeout when no report arrived within the deadline, and any other
// error for a hardware/transport failure.
type Device interface {
	// WriteReport writes one 65-byte HID output report (report id + frame).
	// A short write is reported as an error by implementations (hidio.Handle
	// returns hidio.ErrShortWrite); the Session passes it through unchanged.
	WriteReport(report [reportSize]byte) error

	// ReadTimeout blocks for at most timeout waiting for one 64-byte HID
	// input report.
	ReadTimeout(timeout time.Duration) (frame [frameSize]byte, err error)

	Close() error
}
