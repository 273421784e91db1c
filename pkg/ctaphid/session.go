package ctaphid

import (
	"bytes"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/hidfido/ctaphid/pkg/notifier"
	"github.com/hidfido/ctaphid/pkg/prng"
)

// Locator resolves and opens the physical device a Session binds to. It is
// the external collaborator spec §4.7 describes as the Enumerator, plus the
// "open(path) -> handle" half of the HID adapter contract (spec §6).
type Locator interface {
	FindDevicePath() (string, error)
	Open(path string) (Device, error)
}

const initNonceSize = 8
const initResponseSize = 17

// Session owns exactly one device handle and, after a successful Init, one
// allocated channel id (spec §3's "Session state"). Every higher-level
// operation funnels through SendCommand and ReceiveCommand.
type Session struct {
	locator Locator

	device  Device
	channel Channel

	hasWinkCapability bool
	hasCBORCapability bool
	hasMSGCapability  bool
	canWink           mo.Option[bool]

	verbose       bool
	notifier      notifier.Notifier
	prng          prng.Source
	logger        *slog.Logger
	receiveWindow time.Duration
	traceID       uuid.UUID
}

// New builds a Session bound to a Locator. Init must be called before any
// other operation.
func New(locator Locator, opts ...SessionOption) *Session {
	s := &Session{
		locator:       locator,
		channel:       Broadcast,
		notifier:      notifier.Stdout{},
		prng:          prng.NewDeterministic(1),
		logger:        slog.Default(),
		receiveWindow: 5 * time.Second,
		traceID:       uuid.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionOption configures a Session at construction time.
type SessionOption func(*Session)

func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

func WithNotifier(n notifier.Notifier) SessionOption {
	return func(s *Session) { s.notifier = n }
}

func WithPRNG(source prng.Source) SessionOption {
	return func(s *Session) { s.prng = source }
}

func WithReceiveWindow(d time.Duration) SessionOption {
	return func(s *Session) { s.receiveWindow = d }
}

func WithVerboseLogging() SessionOption {
	return func(s *Session) { s.verbose = true }
}

// ChannelID returns the session's assigned channel, or the broadcast id
// before Init has completed successfully.
func (s *Session) ChannelID() ChannelID { return s.channel.ID() }

func (s *Session) HasWinkCapability() bool { return s.hasWinkCapability }
func (s *Session) HasCBORCapability() bool { return s.hasCBORCapability }
func (s *Session) HasMSGCapability() bool  { return s.hasMSGCapability }

// CanWink reports the capability WINK actually demonstrated the last time it
// was called, if ever (spec §3's "can_wink (observed)").
func (s *Session) CanWink() mo.Option[bool] { return s.canWink }

// Init implements spec §4.4. It closes any existing handle, resolves and
// opens a device via the Locator, and performs the INIT nonce-echo handshake
// on the broadcast channel.
//
// The nonce-echo loop uses a single deadline computed once, not re-armed on
// every discarded reply: see DESIGN.md's resolution of the corresponding
// open question in spec §9.
func (s *Session) Init() error {
	if s.device != nil {
		_ = s.device.Close()
		s.device = nil
	}
	s.channel = Broadcast

	path, err := s.locator.FindDevicePath()
	if err != nil {
		return err
	}

	dev, err := s.locator.Open(path)
	if err != nil {
		return err
	}
	s.device = dev

	nonce := s.prng.Nonce(initNonceSize)
	frames, err := Fragment(BroadcastCID, CTAPHID_INIT, nonce)
	if err != nil {
		return err
	}
	if err := s.sendFrames(frames); err != nil {
		return err
	}

	deadline := time.Now().Add(s.receiveWindow)
	for {
		f, err := readFrameUntil(s.device, deadline)
		if err != nil {
			return err
		}
		s.logFrame("<<", f)

		if f.CID() != BroadcastCID || !f.IsInitType() {
			continue
		}
		if f.Command() == CTAPHID_ERROR {
			return &TransportError{Command: CTAPHID_ERROR, Status: StatusCode(f.InitPayload()[0])}
		}
		if f.Command() != CTAPHID_INIT || f.PayloadLength() != initResponseSize {
			continue
		}
		payload := f.InitPayload()[:initResponseSize]
		if subtle.ConstantTimeCompare(payload[:initNonceSize], nonce) != 1 {
			continue
		}

		cid := ChannelID{payload[8], payload[9], payload[10], payload[11]}
		capabilities := payload[16]
		s.channel = Assigned(cid)
		s.hasWinkCapability = capabilities&byte(CAPABILITY_WINK) != 0
		s.hasCBORCapability = capabilities&byte(CAPABILITY_CBOR) != 0
		// Negative feature flag: the wire reports "no MSG", we expose "has MSG".
		s.hasMSGCapability = capabilities&byte(CAPABILITY_NMSG) == 0

		return nil
	}
}

// Close releases the device handle. Safe to call on a Session whose Init
// never succeeded.
func (s *Session) Close() error {
	if s.device == nil {
		return nil
	}
	err := s.device.Close()
	s.device = nil
	return err
}

// SendCommand implements the fragmenter half of spec §4.2: it splits payload
// into frames on the session's channel and writes them in order.
func (s *Session) SendCommand(cmd Command, payload []byte) error {
	frames, err := Fragment(s.channel.ID(), cmd, payload)
	if err != nil {
		return err
	}
	return s.sendFrames(frames)
}

func (s *Session) sendFrames(frames []Frame) error {
	for _, f := range frames {
		report := PackReport(f)
		if err := s.device.WriteReport(report); err != nil {
			return err
		}
		s.logFrame(">>", f)
	}
	return nil
}

// ReceiveCommand implements spec §4.3 for this session's channel.
func (s *Session) ReceiveCommand(deadline time.Time) (Command, []byte, error) {
	return ReceiveCommand(s.device, s.channel.ID(), deadline)
}

// Ping implements spec §4.5: round-trips an arbitrary payload and asserts it
// comes back unchanged.
func (s *Session) Ping(payload []byte) ([]byte, error) {
	if err := s.SendCommand(CTAPHID_PING, payload); err != nil {
		return nil, err
	}
	cmd, resp, err := s.ReceiveCommand(time.Now().Add(s.receiveWindow))
	if err != nil {
		return nil, err
	}
	if cmd != CTAPHID_PING {
		return nil, ErrUnexpectedCommand
	}
	if !bytes.Equal(payload, resp) {
		return nil, fmt.Errorf("ctaphid: ping/pong mismatch")
	}
	return resp, nil
}

// Wink implements spec §4.5. It records the observed WINK capability
// regardless of outcome.
func (s *Session) Wink() error {
	s.canWink = mo.Some(false)

	if err := s.SendCommand(CTAPHID_WINK, nil); err != nil {
		return err
	}
	cmd, resp, err := s.ReceiveCommand(time.Now().Add(s.receiveWindow))
	if err != nil {
		return err
	}
	if cmd != CTAPHID_WINK {
		return ErrUnexpectedCommand
	}
	if len(resp) != 0 {
		return ErrInvalidLength
	}

	s.canWink = mo.Some(true)
	return nil
}

// Msg sends an arbitrary CTAPHID_MSG payload (U2F/CTAP1 framing) and returns
// the response payload verbatim.
func (s *Session) Msg(payload []byte) ([]byte, error) {
	if err := s.SendCommand(CTAPHID_MSG, payload); err != nil {
		return nil, err
	}
	cmd, resp, err := s.ReceiveCommand(time.Now().Add(s.receiveWindow))
	if err != nil {
		return nil, err
	}
	if cmd != CTAPHID_MSG {
		return nil, ErrUnexpectedCommand
	}
	return resp, nil
}

// Lock places (or releases, with seconds == 0) an exclusive channel lock.
func (s *Session) Lock(seconds uint8) error {
	if err := s.SendCommand(CTAPHID_LOCK, []byte{seconds}); err != nil {
		return err
	}
	cmd, _, err := s.ReceiveCommand(time.Now().Add(s.receiveWindow))
	if err != nil {
		return err
	}
	if cmd != CTAPHID_LOCK {
		return ErrUnexpectedCommand
	}
	return nil
}

// Sync sends a CTAPHID_SYNC keep-channel-alive probe.
func (s *Session) Sync() error {
	return s.SendCommand(CTAPHID_SYNC, nil)
}

// Cancel sends CTAPHID_CANCEL. It is fire-and-forget: no response is
// expected on the wire.
func (s *Session) Cancel() error {
	return s.SendCommand(CTAPHID_CANCEL, nil)
}

// CBOR implements spec §4.6: a CTAPHID_CBOR exchange with a keepalive loop
// that prompts for user presence at most once.
func (s *Session) CBOR(command byte, payload []byte, expectUserPresence bool) (Status, []byte, error) {
	if 1+len(payload) > maxPayloadSize {
		return Status{}, nil, ErrInvalidLength
	}

	send := make([]byte, 0, 1+len(payload))
	send = append(send, command)
	send = append(send, payload...)

	if err := s.SendCommand(CTAPHID_CBOR, send); err != nil {
		return Status{}, nil, err
	}

	deadline := time.Now().Add(s.receiveWindow)
	cmd, data, err := s.ReceiveCommand(deadline)
	if err != nil {
		return Status{}, nil, err
	}

	hasSentPrompt := false
	for cmd == CTAPHID_KEEPALIVE {
		if len(data) != 1 {
			return Status{}, nil, &KeepaliveError{Payload: data}
		}
		switch KeepaliveCode(data[0]) {
		case KeepaliveProcessing:
			s.logger.Debug("ctaphid: keepalive: still processing", "trace", s.traceID)
		case KeepaliveUpNeeded:
			s.logger.Debug("ctaphid: keepalive: user presence needed", "trace", s.traceID)
			if !hasSentPrompt {
				hasSentPrompt = true
				s.notifier.PromptUserPresence()
			}
		default:
			return Status{}, nil, &KeepaliveError{Payload: data}
		}

		// Each receive restarts the deadline: the reference implementation
		// re-arms it on every iteration too (see DESIGN.md).
		deadline = time.Now().Add(s.receiveWindow)
		cmd, data, err = s.ReceiveCommand(deadline)
		if err != nil {
			return Status{}, nil, err
		}
	}

	if cmd != CTAPHID_CBOR {
		return Status{}, nil, ErrUnexpectedCommand
	}
	if len(data) == 0 {
		return Status{}, nil, ErrInvalidLength
	}

	if hasSentPrompt && !expectUserPresence {
		s.notifier.Warn("a user-presence prompt was sent unexpectedly")
	}
	if !hasSentPrompt && expectUserPresence {
		s.notifier.Warn("a user-presence prompt was expected, but not performed (sometimes it is just not recognized if performed too fast)")
	}

	status := ClassifyStatus(data[0])
	tail := data[1:]

	switch {
	case status.IsRetired():
		s.notifier.Warn(fmt.Sprintf("received deprecated status code %s", status))
		return status, tail, ErrOther
	case status.IsExtension():
		s.notifier.Warn(fmt.Sprintf("received extension-specific status code %s", status))
		return status, tail, ErrOther
	case status.IsVendor():
		s.notifier.Warn(fmt.Sprintf("received vendor-specific status code %s", status))
		return status, tail, ErrOther
	case status.IsUnknown():
		panic(fmt.Sprintf("ctaphid: authenticator returned an unspecified status byte 0x%02x", status.Raw()))
	}

	return status, tail, nil
}

func (s *Session) logFrame(direction string, f Frame) {
	if !s.verbose || !s.logger.Enabled(nil, slog.LevelDebug) {
		return
	}
	if f.IsInitType() {
		s.logger.Debug("ctaphid frame",
			"dir", direction,
			"cid", f.CID().String(),
			"cmd", f.Command().String(),
			"len", f.PayloadLength(),
			"data", hex.EncodeToString(f.InitPayload()),
			"trace", s.traceID,
		)
		return
	}
	s.logger.Debug("ctaphid frame",
		"dir", direction,
		"cid", f.CID().String(),
		"seq", f.MaskedSeq(),
		"data", hex.EncodeToString(f.ContPayload()),
		"trace", s.traceID,
	)
}
