// Package sugar offers convenience wrappers over enumerate and ctaphid for
// the common case of "there might be more than one authenticator plugged
// in, and the caller doesn't yet know which port it's on."
package sugar

import (
	"context"
	"errors"
	"sync"

	"github.com/samber/mo"

	"github.com/hidfido/ctaphid/pkg/ctaphid"
	"github.com/hidfido/ctaphid/pkg/hidio"
)

// hidEnumerate and hidOpen are indirected through package variables so
// tests can substitute fakes without real hardware attached.
var (
	hidEnumerate = hidio.Enumerate
	hidOpen      = hidio.OpenPath
)

// EnumerateFIDODevices lists every attached HID device whose usage page
// identifies it as a FIDO authenticator.
func EnumerateFIDODevices(ctx context.Context, vendorID, productID uint16) ([]hidio.DeviceInfo, error) {
	infos, err := hidEnumerate(ctx, vendorID, productID)
	if err != nil {
		return nil, err
	}

	fido := make([]hidio.DeviceInfo, 0, len(infos))
	for _, info := range infos {
		if info.IsFIDO() {
			fido = append(fido, info)
		}
	}
	return fido, nil
}

// SelectDevice opens every attached FIDO authenticator, initializes each
// concurrently, and returns the first one to complete its handshake. This
// is useful when several tokens are plugged in and the caller wants
// whichever one the user reaches for first, without CTAPHID exposing a
// blocking "selection" primitive of its own (that's a CTAP2-layer concept;
// at this transport layer WINK is the closest analog, so a session that
// finishes Init fastest is treated as "selected").
func SelectDevice(ctx context.Context, vendorID, productID uint16, opts ...ctaphid.SessionOption) (*ctaphid.Session, error) {
	infos, err := EnumerateFIDODevices(ctx, vendorID, productID)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, errors.New("sugar: no FIDO devices found")
	}
	if len(infos) == 1 {
		return openAndInit(ctx, infos[0].Path, opts)
	}

	type result = mo.Either[*ctaphid.Session, error]
	selected := make(chan result, len(infos))

	var wg sync.WaitGroup
	var once sync.Once

	for _, info := range infos {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()

			sess, err := openAndInit(ctx, path, opts)
			if err != nil {
				selected <- mo.Right[*ctaphid.Session, error](err)
				return
			}
			once.Do(func() {
				selected <- mo.Left[*ctaphid.Session, error](sess)
			})
		}(info.Path)
	}

	wg.Wait()
	close(selected)

	var firstErr error
	for outcome := range selected {
		if sess, ok := outcome.Left(); ok {
			return sess, nil
		}
		if firstErr == nil {
			firstErr = outcome.MustRight()
		}
	}
	if firstErr == nil {
		return nil, errors.New("sugar: no device completed initialization")
	}
	return nil, firstErr
}

func openAndInit(ctx context.Context, path string, opts []ctaphid.SessionOption) (*ctaphid.Session, error) {
	locator := &pathLocator{ctx: ctx, path: path}
	sess := ctaphid.New(locator, opts...)
	if err := sess.Init(); err != nil {
		return nil, err
	}
	return sess, nil
}

// pathLocator is a ctaphid.Locator fixed to a single already-known path,
// used when the caller (here, SelectDevice) has already done its own
// enumeration and just needs Session.Init to open that one device.
type pathLocator struct {
	ctx  context.Context
	path string
}

func (l *pathLocator) FindDevicePath() (string, error) { return l.path, nil }

func (l *pathLocator) Open(path string) (ctaphid.Device, error) {
	return hidOpen(l.ctx, path)
}
