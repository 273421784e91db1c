package ctaphid

import (
	"errors"
	"fmt"
	"time"

	"github.com/hidfido/ctaphid/pkg/hidio"
)

// ReceiveCommand implements spec §4.3. It reads frames from dev until a
// complete message addressed to cid is assembled, or deadline passes.
//
// Frames on another channel are silently dropped, both before and after an
// INIT frame has been accepted for this message: that is the only isolation
// this transport gets against other host processes sharing the same
// physical key (see spec §5).
func ReceiveCommand(dev Device, cid ChannelID, deadline time.Time) (Command, []byte, error) {
	var accepted Frame
	for {
		f, err := readFrameUntil(dev, deadline)
		if err != nil {
			return 0, nil, err
		}
		if f.CID() != cid {
			continue
		}
		if !f.IsInitType() {
			// Stray continuation frame with no INIT accepted yet for this
			// message: discard and keep waiting within the same deadline.
			continue
		}
		accepted = f
		break
	}

	if accepted.Command() == CTAPHID_ERROR {
		status := StatusCode(accepted.InitPayload()[0])
		return CTAPHID_ERROR, nil, &TransportError{Command: CTAPHID_ERROR, Status: status}
	}

	totalLen := int(accepted.PayloadLength())
	if totalLen > maxPayloadSize {
		return 0, nil, ErrInvalidLength
	}

	out := make([]byte, 0, totalLen)
	n := min(initPayloadRegion, totalLen)
	out = append(out, accepted.InitPayload()[:n]...)
	totalLen -= n

	var expectSeq byte
	for totalLen > 0 {
		f, err := readFrameUntil(dev, deadline)
		if err != nil {
			return 0, nil, err
		}
		if f.CID() != cid {
			// Other-channel traffic interleaved mid-message: drop and keep
			// the sequence-number state exactly as it was.
			continue
		}
		if f.IsInitType() {
			return 0, nil, ErrInvalidSeq
		}
		if f.MaskedSeq() != expectSeq {
			return 0, nil, ErrInvalidSeq
		}
		expectSeq++

		n = min(contPayloadRegion, totalLen)
		out = append(out, f.ContPayload()[:n]...)
		totalLen -= n
	}

	return accepted.Command(), out, nil
}

// readFrameUntil reads one frame from dev, re-deriving the remaining budget
// from the absolute deadline on every call (spec §4.3's "remaining time =
// deadline − now").
func readFrameUntil(dev Device, deadline time.Time) (Frame, error) {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return Frame{}, ErrTimeout
	}

	report, err := dev.ReadTimeout(remaining)
	if err != nil {
		return Frame{}, mapDeviceError(err)
	}

	return Frame(report), nil
}

// mapDeviceError translates a Device implementation's own error taxonomy
// (hidio's sentinels, or a raw backend/hardware error) into this package's
// ErrTimeout/ErrOther, so a caller doing errors.Is(err, ctaphid.ErrTimeout)
// matches regardless of which Device produced it. Errors already expressed
// in this package's own terms (as test fakes do) pass through unchanged.
func mapDeviceError(err error) error {
	if errors.Is(err, ErrTimeout) || errors.Is(err, hidio.ErrTimeout) {
		return ErrTimeout
	}
	if errors.Is(err, ErrOther) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrOther, err)
}
