package ctaphid

import (
	"encoding/binary"
	"fmt"
)

// frameSize is the fixed CTAPHID frame size on the wire, not counting the
// leading HID report id byte.
const frameSize = 64

// reportSize is the full HID output/input report, report id included.
const reportSize = 1 + frameSize

// Frame is one fixed 64-byte CTAPHID wire unit. Deliberately a plain byte
// buffer rather than a reinterpreted struct: every field is read and written
// through explicit offsets and endianness helpers below, which keeps the
// codec portable regardless of host endianness or struct layout rules.
type Frame [frameSize]byte

// PackReport packs a Frame into a 65-byte HID output report: a leading
// un-numbered report id, followed by the frame with its channel id in
// network byte order.
func PackReport(f Frame) [reportSize]byte {
	var report [reportSize]byte
	report[0] = reportID
	copy(report[1:], f[:])
	// CID occupies offset 0..3 of the frame and is already in network order;
	// it is written back explicitly to mark the wire boundary.
	binary.BigEndian.PutUint32(report[1:5], binary.BigEndian.Uint32(f[0:4]))
	return report
}

// UnpackReport reverses PackReport: it strips the report id and converts the
// channel id back to host order (a no-op numerically, since ChannelID is
// stored big-endian throughout, but documents the wire boundary).
func UnpackReport(report [reportSize]byte) Frame {
	var f Frame
	copy(f[:], report[1:])
	binary.BigEndian.PutUint32(f[0:4], binary.BigEndian.Uint32(report[1:5]))
	return f
}

// CID returns the frame's channel id.
func (f Frame) CID() ChannelID {
	return ChannelID(f[0:4])
}

func (f *Frame) setCID(cid ChannelID) {
	copy(f[0:4], cid[:])
}

// typeByte is the fifth byte of the frame: command|initPacketBit for an INIT
// frame, or the CONT sequence number (top bit clear) for a continuation.
func (f Frame) typeByte() byte {
	return f[4]
}

// IsInitType reports whether the frame's top type bit marks it as an INIT
// frame; otherwise it is a CONT frame.
func (f Frame) IsInitType() bool {
	return f.typeByte()&initPacketBit != 0
}

// Command returns the INIT frame's command opcode. Only meaningful when
// IsInitType is true.
func (f Frame) Command() Command {
	return Command(f.typeByte() &^ initPacketBit)
}

// MaskedSeq returns the CONT frame's sequence number (0..127). Only
// meaningful when IsInitType is false.
func (f Frame) MaskedSeq() byte {
	return f.typeByte() &^ initPacketBit
}

// PayloadLength returns the INIT frame's declared total message length.
// Only meaningful when IsInitType is true; CONT frames carry no length.
func (f Frame) PayloadLength() uint16 {
	return binary.BigEndian.Uint16(f[5:7])
}

// InitPayload returns the 57-byte INIT payload region.
func (f *Frame) InitPayload() []byte {
	return f[7:frameSize]
}

// ContPayload returns the 59-byte CONT payload region.
func (f *Frame) ContPayload() []byte {
	return f[5:frameSize]
}

// newInitFrame builds an INIT frame; data must be at most initPayloadRegion
// bytes and the remainder of the payload region is padded with padByte.
func newInitFrame(cid ChannelID, cmd Command, totalLen uint16, data []byte) Frame {
	if len(data) > initPayloadRegion {
		panic(fmt.Sprintf("ctaphid: init frame payload chunk too large: %d", len(data)))
	}
	var f Frame
	f.setCID(cid)
	f[4] = byte(cmd) | initPacketBit
	binary.BigEndian.PutUint16(f[5:7], totalLen)
	region := f.InitPayload()
	for i := range region {
		region[i] = padByte
	}
	copy(region, data)
	return f
}

// newContFrame builds a CONT frame with the given sequence number; data must
// be at most contPayloadRegion bytes and the remainder is padded with padByte.
func newContFrame(cid ChannelID, seq byte, data []byte) Frame {
	if len(data) > contPayloadRegion {
		panic(fmt.Sprintf("ctaphid: cont frame payload chunk too large: %d", len(data)))
	}
	if seq&initPacketBit != 0 {
		panic("ctaphid: cont frame sequence number must fit in 7 bits")
	}
	var f Frame
	f.setCID(cid)
	f[4] = seq
	region := f.ContPayload()
	for i := range region {
		region[i] = padByte
	}
	copy(region, data)
	return f
}
