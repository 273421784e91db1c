//go:build hid_cgo

package hidio

import (
	"context"

	ghid "github.com/go-ctap/hid"
)

// Enumerate lists HID devices using the cgo-free go-ctap/hid backend.
func Enumerate(ctx context.Context, vid, pid uint16) ([]DeviceInfo, error) {
	if useNamedPipe(ctx) {
		return nil, ErrNotSupported
	}

	var infos []DeviceInfo
	for devInfo, err := range ghid.Enumerate() {
		if err != nil {
			return infos, err
		}
		if vid != 0 && devInfo.VendorID != vid {
			continue
		}
		if pid != 0 && devInfo.ProductID != pid {
			continue
		}
		infos = append(infos, DeviceInfo{
			Path:       devInfo.Path,
			VendorID:   devInfo.VendorID,
			ProductID:  devInfo.ProductID,
			MfrStr:     devInfo.MfrStr,
			ProductStr: devInfo.ProductStr,
			UsagePage:  devInfo.UsagePage,
			Usage:      devInfo.Usage,
		})
	}
	return infos, nil
}

// OpenPath opens the HID device at path using the cgo-free backend. The
// backend's handle only exposes plain blocking Read, so it is wrapped in
// pollAdapter to give it the same timeout-bounded read every other backend
// has.
func OpenPath(ctx context.Context, path string) (*Handle, error) {
	if useNamedPipe(ctx) {
		return nil, ErrNotSupported
	}

	dev, err := ghid.OpenPath(path)
	if err != nil {
		return nil, err
	}
	return &Handle{raw: pollAdapter{dev}}, nil
}

func useNamedPipe(ctx context.Context) bool {
	v, ok := ctx.Value(CtxKeyUseNamedPipe).(bool)
	return ok && v
}
