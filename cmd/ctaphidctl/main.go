// Command ctaphidctl is a small diagnostic tool over the ctaphid transport
// core: it opens the first FIDO device it finds, prints what it learns
// during INIT, and optionally exercises PING/WINK against it.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/hidfido/ctaphid/pkg/ctaphid"
	"github.com/hidfido/ctaphid/pkg/options"
	"github.com/hidfido/ctaphid/pkg/report"
)

func main() {
	var (
		vendorID     = flag.Uint("vid", 0, "USB vendor id filter (0 = any)")
		productID    = flag.Uint("pid", 0, "USB product id filter (0 = any)")
		verbose      = flag.Bool("v", false, "log every frame sent and received")
		useNamedPipe = flag.Bool("named-pipe", false, "route HID I/O through the Windows named-pipe proxy")
		doPing       = flag.Bool("ping", false, "round-trip a PING after INIT")
		doWink       = flag.Bool("wink", false, "send WINK after INIT")
		jsonOut      = flag.Bool("cbor-report", false, "write the capability report as CBOR to stdout instead of text")
	)
	flag.Parse()

	lvl := new(slog.LevelVar)
	if *verbose {
		lvl.Set(slog.LevelDebug)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))

	if err := run(logger, uint16(*vendorID), uint16(*productID), *verbose, *useNamedPipe, *doPing, *doWink, *jsonOut); err != nil {
		logger.Error("ctaphidctl failed", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, vendorID, productID uint16, verbose, useNamedPipe, doPing, doWink, jsonOut bool) error {
	optFns := []options.Option{options.WithLogger(logger)}
	if useNamedPipe {
		optFns = append(optFns, options.WithUseNamedPipes())
	}
	if verbose {
		optFns = append(optFns, options.WithVerbose())
	}
	cfg := options.New(optFns...)

	locator := cfg.NewLocator(vendorID, productID)
	session := ctaphid.New(locator, cfg.SessionOptions()...)

	if err := session.Init(); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer func() { _ = session.Close() }()

	logger.Info("device initialized", "channel", session.ChannelID().String())

	if doPing {
		payload := []byte("ctaphidctl-ping")
		pong, err := session.Ping(payload)
		if err != nil {
			return fmt.Errorf("ping: %w", err)
		}
		fmt.Printf("ping: %s\n", hex.EncodeToString(pong))
	}

	if doWink {
		if err := session.Wink(); err != nil {
			return fmt.Errorf("wink: %w", err)
		}
	}

	capabilities := report.FromSession(session, vendorID, productID)
	if jsonOut {
		if err := report.WriteCBOR(os.Stdout, capabilities); err != nil {
			return fmt.Errorf("write capability report: %w", err)
		}
		return nil
	}

	fmt.Println(capabilities.String())
	return nil
}
