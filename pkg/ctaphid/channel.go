package ctaphid

import (
	"encoding/binary"
	"fmt"
)

// ChannelID is a CTAPHID channel id, stored as its four wire bytes in network
// byte order; Uint32 gives its numeric value in host order.
type ChannelID [4]byte

func (c ChannelID) String() string {
	return fmt.Sprintf("0x%08x", c.Uint32())
}

// Uint32 returns the channel id as a host-order integer.
func (c ChannelID) Uint32() uint32 {
	return binary.BigEndian.Uint32(c[:])
}

// Channel distinguishes the broadcast channel from an assigned one at the
// type level, so a Session can't accidentally address the broadcast id after
// INIT has allocated a real channel.
type Channel struct {
	assigned bool
	id       ChannelID
}

// Broadcast is the channel used only to request allocation of a new one.
var Broadcast = Channel{assigned: false, id: BroadcastCID}

// Assigned wraps a channel id allocated by an authenticator during INIT.
func Assigned(id ChannelID) Channel {
	return Channel{assigned: true, id: id}
}

// ID returns the underlying wire channel id, whichever kind this is.
func (c Channel) ID() ChannelID {
	if !c.assigned {
		return BroadcastCID
	}
	return c.id
}

// IsBroadcast reports whether this channel is the broadcast channel.
func (c Channel) IsBroadcast() bool {
	return !c.assigned
}

func (c Channel) String() string {
	if !c.assigned {
		return "broadcast"
	}
	return c.id.String()
}
