// Command rider is a terminal client for the BonJoy rider API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/config"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/errs"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/rider"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `rider CLI
Usage:
  rider [-api URL] [-storage file|memory|redis|postgres] [-debug] <cmd> [args]

Commands:
  version
  login     -mobile <10 digits>                  (sends OTP)
  verify    -mobile <10 digits> -otp <code>      (saves session)
  logout
  whoami
  profile   get | refresh [-user id] | save [-name -gender -dob -city -email -image file]
  contacts  list [-cached] | sync
  contacts  add -name <n> -number <10 digits> -rel <relationship> [-address a] [-primary]
  contacts  edit -id <id> [-name -number -rel -address]
  contacts  primary -id <id>
  contacts  delete -id <id>
`)
	os.Exit(2)
}

// main wires the client from env configuration plus flags and dispatches one command.
func main() {
	api := flag.String("api", "", "API base URL (overrides RIDER_API_BASE_URL)")
	storage := flag.String("storage", "", "local store backend (overrides RIDER_STORAGE)")
	debug := flag.Bool("debug", false, "debug logging")
	timeout := flag.Duration("timeout", time.Minute, "overall command timeout")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	if flag.Arg(0) == "version" {
		fmt.Printf("rider %s (%s)\n", version, buildDate)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fail(err)
	}
	applyFlags(cfg, *api, *storage, *debug)
	if err := cfg.Validate(); err != nil {
		fail(err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		fail(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	kv, closeStore, err := rider.OpenStore(ctx, cfg, logger)
	if err != nil {
		fail(err)
	}
	c := rider.New(cfg, kv, rider.Options{
		Logger: logger,
		OnRetry: func(attempt int, delay time.Duration, cause error) {
			fmt.Fprintf(os.Stderr, "request failed (%v), retry %d in %s\n", cause, attempt, delay)
		},
	})

	err = run(ctx, c, os.Stdout, flag.Args())
	closeStore()
	if err != nil {
		fail(err)
	}
}

func applyFlags(cfg *config.Config, api, storage string, debug bool) {
	if api != "" {
		cfg.APIBaseURL = api
	}
	if storage != "" {
		cfg.Storage = storage
	}
	if debug {
		cfg.Debug = true
	}
}

// newLogger keeps stderr quiet unless debugging.
func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return zc.Build()
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// errUsage marks bad command lines; main prints usage for it.
var errUsage = errors.New("usage")

// describe turns err into the line shown to the user.
func describe(err error) string {
	if errors.Is(err, errUsage) {
		return err.Error()
	}
	if msg := errs.Message(err, ""); msg != "" {
		return msg
	}
	return err.Error()
}

func fail(err error) {
	if errors.Is(err, errUsage) {
		fmt.Fprintln(os.Stderr, describe(err))
		usage()
	}
	fmt.Fprintln(os.Stderr, describe(err))
	os.Exit(1)
}
