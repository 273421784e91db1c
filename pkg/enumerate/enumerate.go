// Package enumerate implements the FindDevicePath retry loop (spec §4.7)
// and adapts a hidio backend into a ctaphid.Locator a Session can use to
// (re)open its device on Init.
package enumerate

import (
	"context"
	"errors"
	"time"

	"github.com/samber/lo"

	"github.com/hidfido/ctaphid/pkg/ctaphid"
	"github.com/hidfido/ctaphid/pkg/hidio"
)

// ErrNoFIDODevice is returned once FindDevicePath exhausts its retries
// without seeing a device advertising the FIDO usage page.
var ErrNoFIDODevice = errors.New("enumerate: no FIDO device found after retries")

const (
	maxAttempts = 10
	backoffUnit = 100 * time.Millisecond
)

// EnumerateFunc lists HID devices for a (vendor id, product id) pair;
// hidio.Enumerate satisfies this on every platform build.
type EnumerateFunc func(ctx context.Context, vendorID, productID uint16) ([]hidio.DeviceInfo, error)

// OpenFunc opens the HID device at path; hidio.OpenPath satisfies this on
// every platform build.
type OpenFunc func(ctx context.Context, path string) (*hidio.Handle, error)

// Locator implements ctaphid.Locator for one (vendor id, product id) pair,
// using a hidio backend's Enumerate/OpenPath primitives.
type Locator struct {
	Ctx        context.Context
	VendorID   uint16
	ProductID  uint16
	Enumerate  EnumerateFunc
	OpenDevice OpenFunc

	// Paths pins device selection to an explicit set of HID paths,
	// bypassing enumeration and the retry loop entirely: the first path
	// is used as-is. Leave nil to enumerate normally.
	Paths []string

	// Sleep backs off between retries; overridable in tests so the retry
	// loop doesn't have to burn wall-clock time to exercise it.
	Sleep func(time.Duration)
}

// New builds a Locator bound to the default platform hidio backend
// (whichever Enumerate/OpenPath the active build tags select).
func New(ctx context.Context, vendorID, productID uint16) *Locator {
	return &Locator{
		Ctx:        ctx,
		VendorID:   vendorID,
		ProductID:  productID,
		Enumerate:  hidio.Enumerate,
		OpenDevice: hidio.OpenPath,
		Sleep:      time.Sleep,
	}
}

// FindDevicePath implements spec §4.7: up to 10 attempts, sleeping
// 100·i milliseconds before attempt i (zero wait on the first), selecting
// the first FIDO-usage-page device seen.
func (l *Locator) FindDevicePath() (string, error) {
	if len(l.Paths) > 0 {
		return l.Paths[0], nil
	}

	sleep := l.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	for i := range maxAttempts {
		if i > 0 {
			sleep(time.Duration(i) * backoffUnit)
		}

		infos, err := l.Enumerate(l.Ctx, l.VendorID, l.ProductID)
		if err != nil {
			continue
		}

		if found, ok := lo.Find(infos, hidio.DeviceInfo.IsFIDO); ok {
			return found.Path, nil
		}
	}
	return "", ErrNoFIDODevice
}

// Open implements the second half of ctaphid.Locator.
func (l *Locator) Open(path string) (ctaphid.Device, error) {
	return l.OpenDevice(l.Ctx, path)
}
