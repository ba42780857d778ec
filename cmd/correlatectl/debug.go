package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/momentics/logcorrelate/control"
	"github.com/momentics/logcorrelate/correlator"
)

var (
	debugConfigPath string
	debugDBPath     string
	debugInterval   time.Duration
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Run the correlation engine like run, periodically dumping debug probe state to stderr",
	RunE:  debugE,
}

func init() {
	debugCmd.Flags().StringVar(&debugConfigPath, "config", "correlatectl.yaml", "path to the correlator's YAML config file")
	debugCmd.Flags().StringVar(&debugDBPath, "db", "", "optional sqlite file to persist correlation state across restarts")
	debugCmd.Flags().DurationVar(&debugInterval, "interval", 5*time.Second, "how often to dump debug probe state")
}

func debugE(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c, cfgStore, store, err := buildCorrelator(debugConfigPath, debugDBPath, correlator.WithEmitter(stdoutEmitter{}))
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	if err := c.Init(ctx); err != nil {
		return errors.Wrap(err, "init correlator")
	}
	defer func() {
		if err := c.Deinit(context.Background()); err != nil {
			logger.WithError(err).Warn("deinit reported errors")
		}
	}()

	watchReload(debugConfigPath, cfgStore, c)

	probes := control.NewDebugProbes()
	probes.RegisterProbe("metrics", func() any { return c.Metrics().GetSnapshot() })
	probes.RegisterProbe("pending_contexts", func() any { return c.PendingContexts() })

	dump := func() {
		if err := json.NewEncoder(os.Stderr).Encode(probes.DumpState()); err != nil {
			logger.WithError(err).Warn("failed to write debug probe dump")
		}
	}

	ticker := time.NewTicker(debugInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				dump()
			}
		}
	}()

	err = feedStdin(ctx, c)
	dump()
	return err
}
