package cli

import (
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/roach88/taxii/internal/config"
	"github.com/roach88/taxii/internal/dispatch"
	"github.com/roach88/taxii/internal/engine"
	"github.com/roach88/taxii/internal/hooks"
	"github.com/roach88/taxii/internal/metrics"
	"github.com/roach88/taxii/internal/store"
)

// runtime is everything a command needs to serve requests.
type runtime struct {
	store    *store.Store
	log      *slog.Logger
	disp     *dispatch.Dispatcher
	registry *prometheus.Registry

	// metricsOut receives the text exposition on close; nil skips it.
	metricsOut io.Writer
}

// logger builds the command's logger: debug under --verbose, otherwise the
// configured level. Records go to the command's stderr.
func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if o.LogLevel != "" {
		if lvl, err := (config.Env{LogLevel: o.LogLevel}).Level(); err == nil {
			level = lvl
		}
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// openStore opens the configured database.
func (o *RootOptions) openStore() (*store.Store, error) {
	if o.Database == "" {
		return nil, NewExitError(ExitCommandError, "no database configured: pass --db or set TAXII_DB_PATH")
	}
	st, err := store.Open(o.Database, store.WithSyncLimit(o.SyncLimit))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// newRuntime opens the store and wires engine, hooks, metrics and
// dispatcher around it. The caller closes rt.store.
func (o *RootOptions) newRuntime(cmd *cobra.Command) (*runtime, error) {
	log := o.logger(cmd)

	st, err := o.openStore()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	rec, err := metrics.New(registry)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to register metrics", err)
	}

	reg := hooks.NewRegistry(log)
	reg.Subscribe(hooks.LogListener(log),
		hooks.InboxMessageCreated, hooks.ContentBlockCreated, hooks.SubscriptionCreated)

	eng := engine.New(store.NewLogging(st, log),
		engine.WithNotifier(reg),
		engine.WithMetrics(rec),
		engine.WithLogger(log),
	)
	disp := dispatch.New(eng, st,
		dispatch.WithMetrics(rec),
		dispatch.WithLogger(log),
	)

	rt := &runtime{store: st, log: log, disp: disp, registry: registry}
	if o.Metrics {
		rt.metricsOut = cmd.ErrOrStderr()
	}
	return rt, nil
}

// writeMetrics encodes every gathered family in the Prometheus text format.
func (rt *runtime) writeMetrics(w io.Writer) error {
	families, err := rt.registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

func (rt *runtime) close() {
	if rt.metricsOut != nil {
		if err := rt.writeMetrics(rt.metricsOut); err != nil {
			rt.log.Error("error writing metrics", "error", err)
		}
	}
	if err := rt.store.Close(); err != nil {
		rt.log.Error("error closing database", "error", err)
	}
}
