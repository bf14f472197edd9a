package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-answerbook/internal/aggregate"
	"github.com/mind-engage/mindengage-answerbook/internal/answers"
	auth "github.com/mind-engage/mindengage-answerbook/internal/auth/middleware"
	"github.com/mind-engage/mindengage-answerbook/internal/autosave"
	"github.com/mind-engage/mindengage-answerbook/internal/bridge"
	"github.com/mind-engage/mindengage-answerbook/internal/config"
	"github.com/mind-engage/mindengage-answerbook/internal/db"
	"github.com/mind-engage/mindengage-answerbook/internal/exports"
	"github.com/mind-engage/mindengage-answerbook/internal/kv"
	"github.com/mind-engage/mindengage-answerbook/internal/printer"
	"github.com/mind-engage/mindengage-answerbook/internal/storage"
	syncx "github.com/mind-engage/mindengage-answerbook/internal/sync"
)

// app holds the wired components shared by every command.
type app struct {
	cfg config.Config
	log *zap.Logger

	dbh      *sql.DB
	journal  *syncx.EventRepo
	hub      *bridge.Hub
	auth     *auth.AuthService
	adapter  *answers.Adapter
	saver    *autosave.Debouncer
	agg      *aggregate.Aggregator
	chrome   *printer.Chrome
	exporter *exports.Exporter
	page     printer.PageOptions
}

func newApp(ctx context.Context, cfg config.Config, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	// --- local store ---
	var store kv.Store
	if cfg.DBDriver == "memory" {
		store = kv.NewMemoryStore()
	} else {
		octx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		dbh, err := db.Open(octx, db.Driver(cfg.DBDriver), cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		a.dbh = dbh
		store = kv.NewSQLStore(dbh, cfg.DBDriver)
		a.journal = syncx.NewEventRepo(dbh)
	}

	// --- extension bridge ---
	var ext answers.Extension
	if cfg.ExtensionBridge {
		a.hub = bridge.NewHub(log.Named("bridge"))
		ext = bridge.New(a.hub, cfg.BridgeTimeout, log.Named("bridge"))
	}
	a.auth = auth.NewAuthService(cfg.BridgeSecret)

	opts := []answers.Option{answers.WithLogger(log.Named("answers"))}
	aggOpts := []aggregate.Option{aggregate.WithLogger(log.Named("aggregate"))}
	if a.journal != nil {
		opts = append(opts, answers.WithJournal(a.journal))
		aggOpts = append(aggOpts, aggregate.WithJournal(a.journal))
	}
	adapter, err := answers.NewAdapter(answers.BackendFor(cfg.ExtensionBridge), store, ext, opts...)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	a.adapter = adapter
	a.saver = autosave.New(adapter, cfg.SaveQuietPeriod,
		autosave.WithLogger(log.Named("autosave")),
		autosave.OnSaved(func(assignmentID, subID string) {
			log.Debug("answer saved", zap.String("assignment", assignmentID), zap.String("sub", subID))
		}),
	)
	a.agg = aggregate.New(adapter, aggOpts...)

	// --- print targets ---
	a.page = printer.DefaultPageOptions()
	a.page.Delay = cfg.PrintDelay
	a.chrome = printer.NewChrome(cfg.ChromeBin, log.Named("chrome"))
	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("blob store: %w", err)
	}
	a.exporter = &exports.Exporter{Aggregator: a.agg, Blobs: bs, Chrome: a.chrome, Page: a.page}

	log.Info("answerbook ready",
		zap.String("backend", string(adapter.Backend())),
		zap.String("db", cfg.DBDriver),
		zap.String("mode", string(cfg.Mode)),
	)
	return a, nil
}

func (a *app) ready(ctx context.Context) error {
	if a.dbh == nil {
		return nil
	}
	return a.dbh.PingContext(ctx)
}

// close saves pending edits and releases everything newApp acquired.
func (a *app) close(ctx context.Context) {
	var errs []error
	if a.saver != nil {
		a.saver.Close(ctx)
	}
	if a.hub != nil {
		errs = append(errs, a.hub.Close())
	}
	if a.chrome != nil {
		errs = append(errs, a.chrome.Close())
	}
	if a.dbh != nil {
		errs = append(errs, a.dbh.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("shutdown", zap.Error(err))
	}
}
