//go:build !windows && !hid_cgo

package hidio

import (
	"context"

	"github.com/sstallion/go-hid"
)

// Enumerate lists HID devices using the cgo hidapi binding.
func Enumerate(ctx context.Context, vid, pid uint16) ([]DeviceInfo, error) {
	if useNamedPipe(ctx) {
		return nil, ErrNotSupported
	}

	var infos []DeviceInfo
	err := hid.Enumerate(vid, pid, func(info *hid.DeviceInfo) error {
		infos = append(infos, DeviceInfo{
			Path:         info.Path,
			VendorID:     info.VendorID,
			ProductID:    info.ProductID,
			SerialNbr:    info.SerialNbr,
			MfrStr:       info.MfrStr,
			ProductStr:   info.ProductStr,
			UsagePage:    info.UsagePage,
			Usage:        info.Usage,
			InterfaceNbr: info.InterfaceNbr,
		})
		return nil
	})
	return infos, err
}

// OpenPath opens the HID device at path using the cgo hidapi binding.
func OpenPath(ctx context.Context, path string) (*Handle, error) {
	if useNamedPipe(ctx) {
		return nil, ErrNotSupported
	}

	dev, err := hid.OpenPath(path)
	if err != nil {
		return nil, err
	}
	return &Handle{raw: dev}, nil
}

func useNamedPipe(ctx context.Context) bool {
	v, ok := ctx.Value(CtxKeyUseNamedPipe).(bool)
	return ok && v
}
