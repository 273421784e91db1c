package ctaphid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocator struct {
	path    string
	dev     Device
	findErr error
	openErr error
}

func (l *fakeLocator) FindDevicePath() (string, error) { return l.path, l.findErr }

func (l *fakeLocator) Open(string) (Device, error) {
	if l.openErr != nil {
		return nil, l.openErr
	}
	return l.dev, nil
}

// initEchoDevice answers exactly one CTAPHID_INIT request by echoing back
// the nonce it was sent, allocating the fixed channel id and capability
// byte given at construction.
type initEchoDevice struct {
	fakeDevice
	responded    bool
	assignedCID  ChannelID
	capabilities byte
}

func (d *initEchoDevice) ReadTimeout(time.Duration) ([64]byte, error) {
	if d.responded {
		return [64]byte{}, ErrTimeout
	}
	d.responded = true

	req := d.written[len(d.written)-1]
	nonce := req.InitPayload()[:8]

	resp := make([]byte, 17)
	copy(resp[:8], nonce)
	copy(resp[8:12], d.assignedCID[:])
	resp[16] = d.capabilities

	f := newInitFrame(BroadcastCID, CTAPHID_INIT, 17, resp)
	return [64]byte(f), nil
}

type recordingNotifier struct {
	prompts  int
	warnings []string
}

func (n *recordingNotifier) PromptUserPresence() { n.prompts++ }
func (n *recordingNotifier) Warn(message string) { n.warnings = append(n.warnings, message) }

func TestSession_Init_AllocatesChannelAndCapabilities(t *testing.T) {
	assigned := ChannelID{0xAA, 0xBB, 0xCC, 0xDD}
	dev := &initEchoDevice{
		assignedCID:  assigned,
		capabilities: byte(CAPABILITY_WINK) | byte(CAPABILITY_CBOR),
	}
	locator := &fakeLocator{dev: dev}

	sess := New(locator, WithReceiveWindow(time.Second))
	require.NoError(t, sess.Init())

	assert.Equal(t, assigned, sess.ChannelID())
	assert.True(t, sess.HasWinkCapability())
	assert.True(t, sess.HasCBORCapability())
	assert.True(t, sess.HasMSGCapability()) // NMSG bit clear => MSG supported
}

func TestSession_Ping_RoundTrips(t *testing.T) {
	cid := ChannelID{1, 2, 3, 4}
	payload := []byte("ping-data")
	resp := newInitFrame(cid, CTAPHID_PING, uint16(len(payload)), payload)

	sess := New(&fakeLocator{}, WithReceiveWindow(time.Second))
	sess.channel = Assigned(cid)
	sess.device = &fakeDevice{toRead: []Frame{resp}}

	pong, err := sess.Ping(payload)
	require.NoError(t, err)
	assert.Equal(t, payload, pong)
}

func TestSession_Ping_MismatchIsError(t *testing.T) {
	cid := ChannelID{1, 2, 3, 4}
	resp := newInitFrame(cid, CTAPHID_PING, 4, []byte("nope"))

	sess := New(&fakeLocator{}, WithReceiveWindow(time.Second))
	sess.channel = Assigned(cid)
	sess.device = &fakeDevice{toRead: []Frame{resp}}

	_, err := sess.Ping([]byte("ping"))
	assert.Error(t, err)
}

func TestSession_Wink_RecordsObservedCapability(t *testing.T) {
	cid := ChannelID{1, 2, 3, 4}
	resp := newInitFrame(cid, CTAPHID_WINK, 0, nil)

	sess := New(&fakeLocator{}, WithReceiveWindow(time.Second))
	sess.channel = Assigned(cid)
	sess.device = &fakeDevice{toRead: []Frame{resp}}

	require.NoError(t, sess.Wink())

	observed, ok := sess.CanWink().Get()
	require.True(t, ok)
	assert.True(t, observed)
}

func TestSession_CBOR_PromptsOnceThenReturnsStatus(t *testing.T) {
	cid := ChannelID{1, 2, 3, 4}
	keepalive := newInitFrame(cid, CTAPHID_KEEPALIVE, 1, []byte{byte(KeepaliveUpNeeded)})

	respPayload := append([]byte{byte(CTAP2_OK)}, []byte{0xA1, 0x61, 0x61, 0x01}...)
	resp := newInitFrame(cid, CTAPHID_CBOR, uint16(len(respPayload)), respPayload)

	notif := &recordingNotifier{}
	sess := New(&fakeLocator{}, WithReceiveWindow(time.Second), WithNotifier(notif))
	sess.channel = Assigned(cid)
	sess.device = &fakeDevice{toRead: []Frame{keepalive, resp}}

	status, tail, err := sess.CBOR(0x01, []byte{0x02}, true)
	require.NoError(t, err)
	assert.True(t, status.IsSuccess())
	assert.Equal(t, respPayload[1:], tail)
	assert.Equal(t, 1, notif.prompts)
	assert.Empty(t, notif.warnings)
}

func TestSession_CBOR_PromptMismatchWarnsButDoesNotFail(t *testing.T) {
	cid := ChannelID{1, 2, 3, 4}
	resp := newInitFrame(cid, CTAPHID_CBOR, 1, []byte{byte(CTAP2_OK)})

	notif := &recordingNotifier{}
	sess := New(&fakeLocator{}, WithReceiveWindow(time.Second), WithNotifier(notif))
	sess.channel = Assigned(cid)
	sess.device = &fakeDevice{toRead: []Frame{resp}}

	status, _, err := sess.CBOR(0x01, nil, true) // expected a prompt, none arrived
	require.NoError(t, err)
	assert.True(t, status.IsSuccess())
	assert.Len(t, notif.warnings, 1)
}

func TestSession_CBOR_UnknownStatusIsFatal(t *testing.T) {
	cid := ChannelID{1, 2, 3, 4}
	resp := newInitFrame(cid, CTAPHID_CBOR, 1, []byte{0xFC})

	sess := New(&fakeLocator{}, WithReceiveWindow(time.Second))
	sess.channel = Assigned(cid)
	sess.device = &fakeDevice{toRead: []Frame{resp}}

	assert.Panics(t, func() {
		_, _, _ = sess.CBOR(0x01, nil, false)
	})
}

func TestSession_CBOR_VendorStatusConvertsToOther(t *testing.T) {
	cid := ChannelID{1, 2, 3, 4}
	resp := newInitFrame(cid, CTAPHID_CBOR, 1, []byte{0xF2})

	notif := &recordingNotifier{}
	sess := New(&fakeLocator{}, WithReceiveWindow(time.Second), WithNotifier(notif))
	sess.channel = Assigned(cid)
	sess.device = &fakeDevice{toRead: []Frame{resp}}

	status, _, err := sess.CBOR(0x01, nil, false)
	assert.ErrorIs(t, err, ErrOther)
	assert.True(t, status.IsVendor())
	assert.Len(t, notif.warnings, 1)
}
