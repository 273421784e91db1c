// Package report provides the diagnostic surface cmd/ctaphidctl uses to
// print what a Session learned about a device, plus helpers that save raw
// wire captures under an artifact directory laid out the way the reference
// test harness's crash monitor lays it out. cmd/ctaphidctl does not call the
// capture helpers; nothing in this module saves a capture automatically.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/hidfido/ctaphid/pkg/ctaphid"
)

const artifactsDirName = "ctaphid-artifacts"

// ArtifactDir resolves (and creates) the directory a given artifact category
// is saved under. It prefers $BUILD_WORKSPACE_DIRECTORY, matching the
// reference harness's crash monitor, and falls back to a directory relative
// to the working directory otherwise.
func ArtifactDir(category string) (string, error) {
	root := artifactsDirName
	if ws := os.Getenv("BUILD_WORKSPACE_DIRECTORY"); ws != "" {
		root = filepath.Join(ws, artifactsDirName)
	}

	dir := filepath.Join(root, category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// SaveFrameDump preserves a raw wire capture under ArtifactDir(category),
// naming it with a fresh uuid so repeated failures never collide, and
// returns the path it was written to.
func SaveFrameDump(category string, data []byte) (string, error) {
	dir, err := ArtifactDir(category)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, uuid.New().String()+".bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Capabilities snapshots what a Session has observed about a device: the
// capability bits INIT advertised, plus any capability confirmed by
// actually exercising it (currently just Wink).
type Capabilities struct {
	VendorID     uint16 `json:"vendor_id" cbor:"vendor_id"`
	ProductID    uint16 `json:"product_id" cbor:"product_id"`
	ChannelID    string `json:"channel_id" cbor:"channel_id"`
	Wink         bool   `json:"wink_capability" cbor:"wink_capability"`
	CBOR         bool   `json:"cbor_capability" cbor:"cbor_capability"`
	MSG          bool   `json:"msg_capability" cbor:"msg_capability"`
	ObservedWink *bool  `json:"observed_wink,omitempty" cbor:"observed_wink,omitempty"`
}

// FromSession builds a Capabilities snapshot from an initialized Session.
func FromSession(s *ctaphid.Session, vendorID, productID uint16) Capabilities {
	c := Capabilities{
		VendorID:  vendorID,
		ProductID: productID,
		ChannelID: s.ChannelID().String(),
		Wink:      s.HasWinkCapability(),
		CBOR:      s.HasCBORCapability(),
		MSG:       s.HasMSGCapability(),
	}
	if observed, ok := s.CanWink().Get(); ok {
		c.ObservedWink = &observed
	}
	return c
}

// WriteCBOR serializes a Capabilities snapshot using the same CTAP2
// canonical encoding options the wire protocol's CBOR payloads use, so a
// saved report round-trips through any conformant CBOR decoder.
func WriteCBOR(w io.Writer, c Capabilities) error {
	encMode, err := cbor.CTAP2EncOptions().EncMode()
	if err != nil {
		return err
	}
	b, err := encMode.Marshal(c)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func (c Capabilities) String() string {
	line := fmt.Sprintf(
		"vendor=0x%04x product=0x%04x channel=%s wink=%t cbor=%t msg=%t",
		c.VendorID, c.ProductID, c.ChannelID, c.Wink, c.CBOR, c.MSG,
	)
	if c.ObservedWink == nil {
		return line
	}
	line += fmt.Sprintf(" observed_wink=%t", *c.ObservedWink)
	if *c.ObservedWink != c.Wink {
		line += " (WINK mismatch: advertised capability disagrees with what was observed)"
	}
	return line
}
