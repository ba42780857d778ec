package main

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/momentics/logcorrelate/api"
	"github.com/momentics/logcorrelate/control"
	"github.com/momentics/logcorrelate/correlator"
	"github.com/momentics/logcorrelate/persistence/sqlite"
)

var (
	configPath string
	dbPath     string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the correlation engine over newline-delimited JSON log lines on stdin",
	RunE:  runE,
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "correlatectl.yaml", "path to the correlator's YAML config file")
	runCmd.Flags().StringVar(&dbPath, "db", "", "optional sqlite file to persist correlation state across restarts")
}

// inputLine is the newline-delimited JSON shape this demo driver reads
// from stdin; a real pipeline source would carry far more fields.
type inputLine struct {
	Host    string            `json:"host"`
	Program string            `json:"program"`
	Process string            `json:"process"`
	Ts      int64             `json:"ts"`
	Fields  map[string]string `json:"fields"`
}

// buildCorrelator wires a Correlator from the YAML config at cfgPath,
// optionally backed by a sqlite persistence store at dbPath. Shared by
// runE and debugE so the two subcommands stay wired identically except
// for what they do with the running engine.
func buildCorrelator(cfgPath, dbPath string, opts ...correlator.Option) (*correlator.Correlator, *control.ConfigStore, *sqlite.Store, error) {
	cfgStore := control.NewConfigStore()
	if err := control.WireHotReload(cfgStore, control.ReloadSource{Path: cfgPath}, logger); err != nil {
		return nil, nil, nil, errors.Wrap(err, "load correlator config")
	}
	cfg, err := correlator.DecodeConfig(cfgStore.GetSnapshot())
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "decode correlator config")
	}

	allOpts := append([]correlator.Option{correlator.WithLogger(logger)}, opts...)

	var store *sqlite.Store
	if dbPath != "" {
		store, err = sqlite.Open(dbPath)
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "open persistence store")
		}
		allOpts = append(allOpts, correlator.WithPersistence(store))
	}

	c, err := correlator.New(cfg, allOpts...)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, nil, nil, errors.Wrap(err, "construct correlator")
	}
	return c, cfgStore, store, nil
}

// watchReload reloads cfgPath into cfgStore every time the process
// receives SIGHUP, for both runE and debugE. Of the reloaded fields,
// only scope is re-applied to the already-running correlator, through
// NormalizeScope's recoverable fallback: every other knob (timeout,
// templates, persistence) requires a restart to take effect.
func watchReload(cfgPath string, cfgStore *control.ConfigStore, c *correlator.Correlator) {
	cfgStore.OnReload(func(snap map[string]any) {
		if requested, ok := snap["scope"].(string); ok {
			c.SetScope(requested)
		}
	})

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			if doc, err := (control.ReloadSource{Path: cfgPath}).Load(); err != nil {
				logger.WithError(err).Warn("config reload failed")
			} else {
				cfgStore.SetConfig(doc)
			}
		}
	}()
}

// feedStdin scans newline-delimited JSON log lines from stdin and feeds
// each one through c.Process, until ctx is done or stdin is exhausted.
func feedStdin(ctx context.Context, c *correlator.Correlator) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		var line inputLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			logger.WithError(err).Warn("skipping malformed input line")
			continue
		}
		msg := api.NewMessage(time.Unix(line.Ts, 0))
		msg.Host = line.Host
		msg.Program = line.Program
		msg.Process = line.Process
		for k, v := range line.Fields {
			msg.Fields[k] = v
		}
		c.Process(msg)
	}
	return scanner.Err()
}

func runE(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c, cfgStore, store, err := buildCorrelator(configPath, dbPath, correlator.WithEmitter(stdoutEmitter{}))
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

	watchReload(configPath, cfgStore, c)

	return feedStdin(ctx, c)
}

// stdoutEmitter prints every synthetic message as a JSON line, the
// correlatectl equivalent of the teacher's --verbose stdout sink.
type stdoutEmitter struct{}

func (stdoutEmitter) Emit(_ context.Context, msg *api.Message) error {
	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(struct {
		Host    string            `json:"host"`
		Program string            `json:"program"`
		Process string            `json:"process"`
		Fields  map[string]string `json:"fields"`
	}{msg.Host, msg.Program, msg.Process, msg.Fields})
}
