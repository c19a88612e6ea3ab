package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lazypower/newcomer/internal/config"
	"github.com/lazypower/newcomer/internal/content"
	"github.com/lazypower/newcomer/internal/delivery"
	"github.com/lazypower/newcomer/internal/engine"
	"github.com/lazypower/newcomer/internal/ledger"
	"github.com/lazypower/newcomer/internal/logging"
	"github.com/lazypower/newcomer/internal/panel"
	"github.com/lazypower/newcomer/internal/stats"
	"github.com/lazypower/newcomer/internal/store"
)

// app is the wiring shared by every command that touches state.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	store  *store.Store
	ledger *ledger.DB
	panel  *panel.Manager
}

// outreach is what a command needs to run the scheduler.
type outreach interface {
	engine.Deliverer
	engine.StaffNotifier
}

func openApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.Init(os.Stderr, cfg.Logging.Format, logging.ParseLevel(cfg.Logging.Level))

	db, err := ledger.Open(ledger.DefaultPath(cfg.Data.Dir),
		ledger.WithNoteSize(cfg.Ledger.NoteSize),
		ledger.WithRetention(cfg.Ledger.Retention))
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if n, err := db.Prune(); err != nil {
		logger.Warn("prune ledger", "error", err)
	} else if n > 0 {
		logger.Info("pruned ledger", "rows", n, "retention", cfg.Ledger.Retention)
	}

	st := store.New(cfg.MembersDir(),
		store.WithLogger(logger),
		store.WithMediumRisk(cfg.Thresholds.MediumRisk))
	st.Initialize()

	pm := panel.New(cfg.PanelPath(), db, logger)
	if _, err := pm.Load(); err != nil {
		logger.Warn("panel state unreadable, using defaults", "path", cfg.PanelPath(), "error", err)
	}

	return &app{cfg: cfg, logger: logger, store: st, ledger: db, panel: pm}, nil
}

func (a *app) Close() error {
	return a.ledger.Close()
}

func (a *app) thresholds() engine.Thresholds {
	return engine.Thresholds{
		Retention:     a.cfg.Thresholds.Retention,
		Encouragement: a.cfg.Thresholds.Encouragement,
	}
}

func (a *app) bands() stats.Bands {
	return stats.Bands{High: a.cfg.Thresholds.HighRisk, Medium: a.cfg.Thresholds.MediumRisk}
}

// deliverer returns the configured bridge, or the log-only deliverer when
// dryRun is set or the config asks for it.
func (a *app) deliverer(dryRun bool) outreach {
	d := a.cfg.Delivery
	if dryRun || d.Mode != "webhook" {
		return delivery.Log{Logger: a.logger}
	}
	return delivery.NewWebhook(d.WebhookURL, d.Announce, delivery.WithTimeout(d.Timeout))
}

func (a *app) presenter() *content.TemplatePresenter {
	return content.NewTemplatePresenter(a.cfg.Delivery.ServerName, a.cfg.Delivery.Channels)
}

func (a *app) scheduler(out outreach) *engine.Scheduler {
	return engine.NewScheduler(engine.SchedulerDeps{
		Store:     a.store,
		Presenter: a.presenter(),
		Deliverer: out,
		Notifier:  out,
		Recorder:  a.ledger,
		Gate:      a.panel,
		Logger:    a.logger,
	}, engine.SchedulerOptions{
		Interval:   a.cfg.Scheduler.Interval,
		BatchSize:  a.cfg.Scheduler.BatchSize,
		Pacing:     a.cfg.Scheduler.Pacing,
		Thresholds: a.thresholds(),
	})
}
