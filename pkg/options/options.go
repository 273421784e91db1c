// Package options provides the functional-options configuration surface for
// a ctaphid Session, following the functional-options pattern used
// elsewhere for device client options.
package options

import (
	"context"
	"log/slog"
	"time"

	"github.com/hidfido/ctaphid/pkg/ctaphid"
	"github.com/hidfido/ctaphid/pkg/enumerate"
	"github.com/hidfido/ctaphid/pkg/hidio"
	"github.com/hidfido/ctaphid/pkg/notifier"
	"github.com/hidfido/ctaphid/pkg/prng"
)

// Options collects everything a Session or the device-selection helpers in
// pkg/enumerate need before opening a handle.
type Options struct {
	Logger        *slog.Logger
	Notifier      notifier.Notifier
	PRNG          prng.Source
	Context       context.Context
	Paths         []string
	UseNamedPipe  bool
	ReceiveWindow time.Duration
	Verbose       bool
}

// Option mutates an Options value under construction.
type Option func(*Options)

// WithLogger overrides the default slog.Default() logger.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithNotifier overrides the default notifier.Stdout side-effect sink.
func WithNotifier(n notifier.Notifier) Option {
	return func(opts *Options) {
		opts.Notifier = n
	}
}

// WithPRNG overrides the default deterministic nonce source.
func WithPRNG(source prng.Source) Option {
	return func(opts *Options) {
		opts.PRNG = source
	}
}

// WithContext threads a cancellation/deadline context through enumeration
// and named-pipe dialing.
func WithContext(ctx context.Context) Option {
	return func(opts *Options) {
		opts.Context = ctx
	}
}

// WithPaths pins device selection to an explicit set of HID paths, skipping
// enumeration entirely.
func WithPaths(paths ...string) Option {
	return func(opts *Options) {
		opts.Paths = paths
	}
}

// WithUseNamedPipes routes HID I/O through the Windows named-pipe proxy
// instead of talking to the device directly.
func WithUseNamedPipes() Option {
	return func(opts *Options) {
		opts.UseNamedPipe = true
	}
}

// WithReceiveWindow overrides the default 5-second per-message receive
// deadline (spec §4.3/§4.4/§4.6).
func WithReceiveWindow(d time.Duration) Option {
	return func(opts *Options) {
		opts.ReceiveWindow = d
	}
}

// WithVerbose turns on per-frame slog.Debug tracing.
func WithVerbose() Option {
	return func(opts *Options) {
		opts.Verbose = true
	}
}

// New applies opts over the defaults: slog.Default(), notifier.Stdout{}, a
// deterministic PRNG, a background context and a 5-second receive window.
func New(opts ...Option) *Options {
	oo := &Options{
		Logger:        slog.Default(),
		Notifier:      notifier.Stdout{},
		PRNG:          prng.NewDeterministic(1),
		Context:       context.Background(),
		ReceiveWindow: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(oo)
	}

	return oo
}

// SessionOptions converts this configuration into the ctaphid.SessionOption
// list ctaphid.New expects, so callers can build one Options value and hand
// it to both a Session and the enumerate.Locator that feeds it.
func (o *Options) SessionOptions() []ctaphid.SessionOption {
	sessOpts := []ctaphid.SessionOption{
		ctaphid.WithLogger(o.Logger),
		ctaphid.WithNotifier(o.Notifier),
		ctaphid.WithPRNG(o.PRNG),
		ctaphid.WithReceiveWindow(o.ReceiveWindow),
	}
	if o.Verbose {
		sessOpts = append(sessOpts, ctaphid.WithVerboseLogging())
	}
	return sessOpts
}

// EnumerateContext returns the context enumeration and named-pipe dialing
// should run under, carrying the named-pipe routing choice the way hidio's
// build-tagged backends expect to read it.
func (o *Options) EnumerateContext() context.Context {
	ctx := o.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if o.UseNamedPipe {
		ctx = context.WithValue(ctx, hidio.CtxKeyUseNamedPipe, true)
	}
	return ctx
}

// NewLocator builds the enumerate.Locator this configuration describes,
// wiring EnumerateContext through and, when WithPaths pinned an explicit
// device, carrying that pin so FindDevicePath skips enumeration entirely.
func (o *Options) NewLocator(vendorID, productID uint16) *enumerate.Locator {
	l := enumerate.New(o.EnumerateContext(), vendorID, productID)
	l.Paths = o.Paths
	return l
}
