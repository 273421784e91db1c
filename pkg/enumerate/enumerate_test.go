package enumerate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hidfido/ctaphid/pkg/hidio"
)

func noSleep(time.Duration) {}

func TestLocator_FindDevicePath_SkipsNonFIDODevices(t *testing.T) {
	calls := 0
	l := &Locator{
		Ctx: context.Background(),
		Enumerate: func(context.Context, uint16, uint16) ([]hidio.DeviceInfo, error) {
			calls++
			return []hidio.DeviceInfo{
				{Path: "keyboard", UsagePage: 0x01, Usage: 0x06},
				{Path: "security-key", UsagePage: 0xf1d0, Usage: 0x01},
			}, nil
		},
	}

	path, err := l.FindDevicePath()
	require.NoError(t, err)
	assert.Equal(t, "security-key", path)
	assert.Equal(t, 1, calls)
}

func TestLocator_FindDevicePath_RetriesThenGivesUp(t *testing.T) {
	calls := 0
	l := &Locator{
		Ctx:   context.Background(),
		Sleep: noSleep,
		Enumerate: func(context.Context, uint16, uint16) ([]hidio.DeviceInfo, error) {
			calls++
			return nil, nil
		},
	}

	_, err := l.FindDevicePath()
	assert.ErrorIs(t, err, ErrNoFIDODevice)
	assert.Equal(t, maxAttempts, calls)
}

func TestLocator_FindDevicePath_ToleratesTransientEnumerateErrors(t *testing.T) {
	calls := 0
	l := &Locator{
		Ctx:   context.Background(),
		Sleep: noSleep,
		Enumerate: func(context.Context, uint16, uint16) ([]hidio.DeviceInfo, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("bus busy")
			}
			return []hidio.DeviceInfo{{Path: "found", UsagePage: 0xf1d0, Usage: 0x01}}, nil
		},
	}

	path, err := l.FindDevicePath()
	require.NoError(t, err)
	assert.Equal(t, "found", path)
}

func TestLocator_FindDevicePath_PinnedPathSkipsEnumeration(t *testing.T) {
	calls := 0
	l := &Locator{
		Ctx:   context.Background(),
		Paths: []string{"pinned-path", "unused-second-path"},
		Enumerate: func(context.Context, uint16, uint16) ([]hidio.DeviceInfo, error) {
			calls++
			return nil, nil
		},
	}

	path, err := l.FindDevicePath()
	require.NoError(t, err)
	assert.Equal(t, "pinned-path", path)
	assert.Equal(t, 0, calls)
}

func TestLocator_Open_DelegatesToOpenDevice(t *testing.T) {
	called := false
	l := &Locator{
		Ctx: context.Background(),
		OpenDevice: func(ctx context.Context, path string) (*hidio.Handle, error) {
			called = true
			assert.Equal(t, "some-path", path)
			return nil, errors.New("no real hardware in this test")
		},
	}

	_, err := l.Open("some-path")
	assert.Error(t, err)
	assert.True(t, called)
}
