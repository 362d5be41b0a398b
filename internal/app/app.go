// Package app aggregates configuration and shared dependencies for the
// CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"xrpl-amm-lab/internal/config"
	"xrpl-amm-lab/internal/extract"
	"xrpl-amm-lab/internal/ingest"
	"xrpl-amm-lab/internal/observability"
	"xrpl-amm-lab/internal/storage"
	"xrpl-amm-lab/internal/storage/clickhouse"
	"xrpl-amm-lab/internal/storage/migrations"
	"xrpl-amm-lab/internal/storage/postgres"
	"xrpl-amm-lab/internal/xrpl"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// stores bundles the open storage backends for one command invocation.
type stores struct {
	Transfers  storage.TransferStore
	Snapshots  storage.SnapshotStore
	Cursors    storage.CursorStore
	Timeseries storage.PoolTimeseriesStore // nil when clickhouse is disabled
}

// openStores connects to PostgreSQL (running migrations) and, when
// enabled, ClickHouse. The returned closer releases both.
func (a *App) openStores(ctx context.Context) (*stores, func(), error) {
	pool, err := postgres.NewPool(ctx, a.Config.Postgres.DSN)
	if err != nil {
		return nil, nil, err
	}

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	st := &stores{
		Transfers: postgres.NewTransferStore(pool),
		Snapshots: postgres.NewSnapshotStore(pool),
		Cursors:   postgres.NewCursorStore(pool),
	}
	closer := func() { pool.Close() }

	if a.Config.Clickhouse.Enabled {
		conn, err := migrations.RunClickhouseMigrations(ctx, a.Config.Clickhouse.DSN)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		st.Timeseries = clickhouse.NewPoolTimeseriesStore(conn)
		closer = func() {
			if err := conn.Close(); err != nil {
				a.Logger.Warn().Err(err).Msg("closing clickhouse connection")
			}
			pool.Close()
		}
	}

	return st, closer, nil
}

// wsConfig maps the XRPL config section onto websocket client settings.
func (a *App) wsConfig() xrpl.WSConfig {
	wc := xrpl.DefaultWSConfig()
	if a.Config.XRPL.RequestTimeout > 0 {
		wc.RequestTimeout = a.Config.XRPL.RequestTimeout
	}
	if a.Config.XRPL.PingInterval > 0 {
		wc.PingInterval = a.Config.XRPL.PingInterval
		wc.ReadTimeout = 2 * a.Config.XRPL.PingInterval
	}
	return wc
}

func (a *App) newSink(st *stores) *ingest.Sink {
	return &ingest.Sink{
		Transfers:  st.Transfers,
		Snapshots:  st.Snapshots,
		Timeseries: st.Timeseries,
		Logger:     a.Logger,
	}
}

func (a *App) newBackfiller(st *stores, client xrpl.LedgerClient) *ingest.Backfiller {
	return ingest.NewBackfiller(ingest.BackfillerOptions{
		Client:     client,
		Extractor:  extract.NewExtractor(a.Config.MonitoredAccounts()),
		Sink:       a.newSink(st),
		Cursors:    st.Cursors,
		Detector:   ingest.NewGapDetector(st.Cursors, a.Config.Backfill.MaxLookbackDays),
		ChunkSize:  a.Config.Backfill.ChunkSize,
		ChunkDelay: a.Config.Backfill.ChunkDelay,
		Logger:     a.Logger,
	})
}

// Run executes the long-running collection service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, closeStores, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer closeStores()

	if a.Config.Metrics.Enabled {
		stopMetrics := a.serveMetrics()
		defer stopMetrics()
	}

	wc := a.wsConfig()
	dial := xrpl.NewDialer(a.Config.XRPL.WebsocketURL, &wc)

	client, err := dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	sink := a.newSink(st)
	extractor := extract.NewExtractor(a.Config.MonitoredAccounts())

	subscriber := ingest.NewSubscriber(ingest.SubscriberOptions{
		Dial:       dial,
		Extractor:  extractor,
		Sink:       sink,
		Cursors:    st.Cursors,
		Accounts:   a.Config.MonitoredAccounts(),
		FlushEvery: a.Config.Realtime.FlushEvery,
		Logger:     a.Logger,
	})

	var sampler *ingest.Sampler
	if pools := a.Config.PoolAccounts(); len(pools) > 0 {
		sampler = ingest.NewSampler(ingest.SamplerOptions{
			Dial:            dial,
			Sink:            sink,
			Pools:           pools,
			SignificancePct: a.Config.Sampler.SignificancePct,
			Logger:          a.Logger,
		})
	}

	coordinator := ingest.NewCoordinator(ingest.CoordinatorOptions{
		Backfiller:           a.newBackfiller(st, client),
		Subscriber:           subscriber,
		Sampler:              sampler,
		Cursors:              st.Cursors,
		Accounts:             a.Config.MonitoredAccounts(),
		SweepInterval:        a.Config.Backfill.SweepInterval,
		SampleEvery:          a.Config.Sampler.Interval,
		MaxReconnectAttempts: a.Config.Realtime.MaxReconnectAttempts,
		MaxReconnectBackoff:  a.Config.Realtime.MaxReconnectBackoff,
		StabilityWindow:      a.Config.Realtime.StabilityWindow,
		Logger:               a.Logger,
	})

	a.Logger.Info().Msg("starting collection service")
	err = coordinator.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("collection service terminated with error")
		return err
	}

	a.Logger.Info().Msg("collection service stopped")
	return nil
}

// BackfillOptions selects what a one-shot backfill pass covers. With a
// zero value the pass fills detected gaps for every monitored account;
// with an explicit account and ledger range it collects that range under
// a historical cursor and marks it completed.
type BackfillOptions struct {
	Account    string
	FromLedger int64
	ToLedger   int64
}

// Backfill runs a single catch-up pass and exits.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, closeStores, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer closeStores()

	wc := a.wsConfig()
	client, err := xrpl.Dial(ctx, a.Config.XRPL.WebsocketURL, &wc)
	if err != nil {
		return err
	}
	defer client.Close()

	backfiller := a.newBackfiller(st, client)
	if opts.Account != "" || opts.FromLedger != 0 || opts.ToLedger != 0 {
		if opts.Account == "" || opts.FromLedger <= 0 || opts.ToLedger <= 0 {
			return fmt.Errorf("historical backfill needs --account, --from and --to")
		}
		return backfiller.FillHistorical(ctx, opts.Account, opts.FromLedger, opts.ToLedger)
	}
	return backfiller.RunPass(ctx, a.Config.MonitoredAccounts())
}

// serveMetrics starts the Prometheus endpoint and returns its stopper.
func (a *App) serveMetrics() func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{Addr: a.Config.Metrics.Addr, Handler: mux}
	go func() {
		a.Logger.Info().Str("addr", server.Addr).Msg("metrics endpoint listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("metrics endpoint failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("metrics endpoint shutdown")
		}
	}
}
