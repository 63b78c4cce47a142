// Command geyser-example is a minimal driver for the subscription engine.
// It reads a YAML configuration file, opens a slot subscription, and prints
// each forwarded update to stdout until interrupted.
//
// Usage:
//
//	geyser-example subscribe --config geyser.yaml
//	geyser-example validate --config geyser.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/geysersdk/client"
	"github.com/geysersdk/client/config"
	"github.com/geysersdk/client/geyserpb"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "geyser-example: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: geyser-example <subscribe|validate> --config <path>")
	}

	sub := args[0]
	rest := args[1:]

	switch sub {
	case "subscribe":
		return cmdSubscribe(rest)
	case "validate":
		return cmdValidate(rest)
	default:
		return fmt.Errorf("unknown command %q; use subscribe or validate", sub)
	}
}

func cmdValidate(args []string) error {
	cfg, err := parseFlags(args)
	if err != nil {
		return err
	}
	fmt.Printf("configuration is valid (endpoint: %s, replay: %v, max_reconnect_attempts: %d)\n",
		cfg.Endpoint, cfg.ReplayEnabled(), cfg.EffectiveMaxReconnectAttempts())
	return nil
}

func cmdSubscribe(args []string) error {
	cfg, err := parseFlags(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := &geyserpb.SubscribeRequest{
		Slots: map[string]*geyserpb.SubscribeRequestFilterSlots{
			"all": {FilterByCommitment: true},
		},
	}

	h, results, err := geyser.Subscribe(ctx, cfg, req)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer h.Cancel()

	fmt.Printf("subscribed (id=%s); press Ctrl-C to stop\n", h.ID())

	for r := range results {
		if r.Err != nil {
			return fmt.Errorf("subscription ended: %w", r.Err)
		}
		printUpdate(r.Update)
	}
	return nil
}

func printUpdate(u *geyserpb.SubscribeUpdate) {
	switch {
	case u.UpdateSlot != nil:
		fmt.Printf("slot=%d filters=%v\n", u.UpdateSlot.Slot, u.Filters)
	case u.UpdateAccount != nil:
		fmt.Printf("account slot=%d filters=%v\n", u.UpdateAccount.Slot, u.Filters)
	case u.UpdateTransaction != nil:
		fmt.Printf("transaction slot=%d filters=%v\n", u.UpdateTransaction.Slot, u.Filters)
	default:
		fmt.Printf("update filters=%v\n", u.Filters)
	}
}

func parseFlags(args []string) (*config.Config, error) {
	fs := flag.NewFlagSet("geyser-example", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to YAML configuration file (required)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	return config.Load(*configPath)
}
