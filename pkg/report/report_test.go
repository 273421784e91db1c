package report_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hidfido/ctaphid/pkg/ctaphid"
	"github.com/hidfido/ctaphid/pkg/report"
)

func TestArtifactDir_UsesBuildWorkspaceDirectoryWhenSet(t *testing.T) {
	ws := t.TempDir()
	t.Setenv("BUILD_WORKSPACE_DIRECTORY", ws)

	dir, err := report.ArtifactDir("frames")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws, "ctaphid-artifacts", "frames"), dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSaveFrameDump_WritesUniquelyNamedFile(t *testing.T) {
	t.Setenv("BUILD_WORKSPACE_DIRECTORY", t.TempDir())

	path1, err := report.SaveFrameDump("timeouts", []byte{0x01, 0x02})
	require.NoError(t, err)
	path2, err := report.SaveFrameDump("timeouts", []byte{0x01, 0x02})
	require.NoError(t, err)

	assert.NotEqual(t, path1, path2)

	got, err := os.ReadFile(path1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, got)
}

func TestCapabilities_StringFlagsWinkMismatch(t *testing.T) {
	observed := false
	c := report.Capabilities{
		VendorID: 0x1234, ProductID: 0x5678,
		ChannelID: "0x00000001", Wink: true, CBOR: true, MSG: true,
		ObservedWink: &observed,
	}
	assert.Contains(t, c.String(), "mismatch")
}

func TestCapabilities_StringWithoutObservation(t *testing.T) {
	c := report.Capabilities{VendorID: 1, ProductID: 2, ChannelID: "0x1", Wink: true, CBOR: false, MSG: true}
	s := c.String()
	assert.NotContains(t, s, "observed_wink")
}

func TestWriteCBOR_RoundTrips(t *testing.T) {
	c := report.Capabilities{VendorID: 0xAAAA, ProductID: 0xBBBB, ChannelID: "0x1", Wink: true}

	var buf bytes.Buffer
	require.NoError(t, report.WriteCBOR(&buf, c))

	var got report.Capabilities
	require.NoError(t, cbor.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, c, got)
}

// fakeDevice and fakeLocator give FromSession a real, initialized Session
// to snapshot, without any physical hardware. ReadTimeout echoes back
// whatever nonce the last INIT request carried, so the handshake in
// Session.Init actually completes.
type fakeDevice struct {
	written [][64]byte
}

func (d *fakeDevice) WriteReport(report [65]byte) error {
	var frame [64]byte
	copy(frame[:], report[1:])
	d.written = append(d.written, frame)
	return nil
}

func (d *fakeDevice) ReadTimeout(time.Duration) ([64]byte, error) {
	req := d.written[len(d.written)-1]
	nonce := req[7:15]

	var resp [64]byte
	resp[0], resp[1], resp[2], resp[3] = 0xff, 0xff, 0xff, 0xff
	resp[4] = 0x80 | 0x06 // INIT frame, CTAPHID_INIT
	resp[5] = 0
	resp[6] = 17
	copy(resp[7:15], nonce)
	copy(resp[15:19], []byte{0, 0, 0, 1}) // allocated channel id
	resp[23] = 0x05                       // WINK | CBOR capability bits
	return resp, nil
}

func (d *fakeDevice) Close() error { return nil }

type fakeLocator struct{ dev ctaphid.Device }

func (l *fakeLocator) FindDevicePath() (string, error) { return "fake", nil }
func (l *fakeLocator) Open(string) (ctaphid.Device, error) {
	return l.dev, nil
}

func TestFromSession_SnapshotsAdvertisedCapabilities(t *testing.T) {
	dev := &fakeDevice{}
	sess := ctaphid.New(&fakeLocator{dev: dev}, ctaphid.WithReceiveWindow(time.Second))

	// the nonce is whatever the session's default PRNG produces; echo it
	// back once we can see what was written.
	require.NoError(t, sess.Init())

	c := report.FromSession(sess, 0x1111, 0x2222)
	assert.Equal(t, uint16(0x1111), c.VendorID)
	assert.Equal(t, uint16(0x2222), c.ProductID)
	assert.Equal(t, "0x00000001", c.ChannelID)
	assert.True(t, c.Wink)
	assert.True(t, c.CBOR)
	assert.True(t, c.MSG) // NMSG bit clear in 0x05
}
