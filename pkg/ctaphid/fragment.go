package ctaphid

import "github.com/samber/lo"

// Fragment splits a logical message (command + payload) into the ordered
// sequence of frames a Fragmenter emits on the wire: exactly one INIT frame,
// followed by as many CONT frames as needed. An empty payload still yields
// exactly one INIT frame.
func Fragment(cid ChannelID, cmd Command, payload []byte) ([]Frame, error) {
	if len(payload) > maxPayloadSize {
		return nil, ErrMessageTooLarge
	}

	head := lo.Slice(payload, 0, initPayloadRegion)
	frames := []Frame{newInitFrame(cid, cmd, uint16(len(payload)), head)}

	if len(payload) <= initPayloadRegion {
		return frames, nil
	}

	rest := payload[initPayloadRegion:]
	for i, chunk := range lo.Chunk(rest, contPayloadRegion) {
		frames = append(frames, newContFrame(cid, byte(i), chunk))
	}

	return frames, nil
}
