//go:build windows && !hid_cgo

package hidio

import (
	"context"

	"github.com/Microsoft/go-winio"
	"github.com/fxamacker/cbor/v2"
	"github.com/sstallion/go-hid"

	"github.com/hidfido/ctaphid/pkg/hidproxy"
)

// Enumerate lists HID devices, either directly via cgo hidapi or, when
// CtxKeyUseNamedPipe is set, by asking the named-pipe proxy process to
// enumerate on its behalf (the Windows named-pipe transport in SPEC_FULL.md
// §6.2).
func Enumerate(ctx context.Context, vid, pid uint16) ([]DeviceInfo, error) {
	if useNamedPipe(ctx) {
		return enumerateOverPipe(ctx)
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

func enumerateOverPipe(ctx context.Context) ([]DeviceInfo, error) {
	pipe, err := winio.DialPipeContext(ctx, hidproxy.NamedPipePath)
	if err != nil {
		return nil, err
	}
	defer pipe.Close()

	msg, err := hidproxy.NewMessage(hidproxy.CommandEnumerate, nil)
	if err != nil {
		return nil, err
	}
	if _, err := msg.WriteTo(pipe); err != nil {
		return nil, err
	}

	reply, err := hidproxy.ParseMessage(pipe)
	if err != nil {
		return nil, err
	}

	var infos []DeviceInfo
	if err := cbor.Unmarshal(reply.Data, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// OpenPath opens the HID device at path, routing through the named-pipe
// proxy when requested and falling back to the direct cgo hidapi binding
// otherwise.
func OpenPath(ctx context.Context, path string) (*Handle, error) {
	if useNamedPipe(ctx) {
		return openPathOverPipe(ctx, path)
	}

	dev, err := hid.OpenPath(path)
	if err != nil {
		return nil, err
	}
	return &Handle{raw: dev}, nil
}

func openPathOverPipe(ctx context.Context, path string) (*Handle, error) {
	pipe, err := winio.DialPipeContext(ctx, hidproxy.NamedPipePath)
	if err != nil {
		return nil, err
	}

	msg, err := hidproxy.NewMessage(hidproxy.CommandStart, path)
	if err != nil {
		_ = pipe.Close()
		return nil, err
	}
	if _, err := msg.WriteTo(pipe); err != nil {
		_ = pipe.Close()
		return nil, err
	}

	return &Handle{raw: pollAdapter{pipe}}, nil
}

func useNamedPipe(ctx context.Context) bool {
	v, ok := ctx.Value(CtxKeyUseNamedPipe).(bool)
	return ok && v
}
