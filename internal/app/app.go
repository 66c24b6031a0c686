// Package app builds a running token service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ppiankov/amlgate/internal/alert"
	"github.com/ppiankov/amlgate/internal/audit"
	"github.com/ppiankov/amlgate/internal/config"
	"github.com/ppiankov/amlgate/internal/executor"
	"github.com/ppiankov/amlgate/internal/gate"
	"github.com/ppiankov/amlgate/internal/graph"
	"github.com/ppiankov/amlgate/internal/ledger"
	"github.com/ppiankov/amlgate/internal/model"
	"github.com/ppiankov/amlgate/internal/oracle"
	"github.com/ppiankov/amlgate/internal/owner"
	"github.com/ppiankov/amlgate/internal/receiver"
	"github.com/ppiankov/amlgate/internal/registry"
	"github.com/ppiankov/amlgate/internal/resolver"
	"github.com/ppiankov/amlgate/internal/storage/sqlite"
	"github.com/ppiankov/amlgate/internal/token"
)

// App owns every component built from one configuration.
type App struct {
	Config     *config.Config
	ConfigHash string
	Logger     *slog.Logger

	Service   *token.Service
	Ledger    ledger.Ledger
	Oracles   *oracle.Directory
	Receivers *receiver.Directory
	// Tables are the file-backed oracles, for hot reload.
	Tables []*oracle.Table
	// Graph is nil when no graph URI is configured.
	Graph *graph.Recorder

	alerts  *alert.Dispatcher
	closers []func() error
}

// Build wires the service described by cfg. On first start against a
// fresh store it seeds owner, registry and initial supply from cfg; later
// starts use the persisted state.
func Build(ctx context.Context, cfg *config.Config, configHash string, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a := &App{Config: cfg, ConfigHash: configHash, Logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	policy, err := registry.ParsePolicy(cfg.Registry.CategoryPolicy)
	if err != nil {
		return nil, err
	}
	supply, err := model.ParseAmount(cfg.Token.TotalSupply)
	if err != nil {
		return nil, fmt.Errorf("token.total_supply: %w", err)
	}

	var (
		ownerStore owner.Store
		regStore   registry.Store
		currentOwn = model.AccountID(cfg.Token.Owner)
		snapshot   = seedSnapshot(cfg)
		seed       = true
	)
	if path := config.ExpandPath(cfg.Storage.Path); path != "" {
		store, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		a.Ledger = store
		ownerStore, regStore = store, store

		if persisted, ok, err := store.LoadOwner(ctx); err != nil {
			return nil, err
		} else if ok {
			currentOwn = persisted
			seed = false
			if snapshot, err = store.LoadRegistry(ctx); err != nil {
				return nil, err
			}
		}
	} else {
		a.Ledger = ledger.NewMemory()
	}

	own := owner.New(currentOwn, ownerStore)
	reg, err := registry.New(own, snapshot, registry.WithStore(regStore), registry.WithPolicy(policy))
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	if seed && ownerStore != nil {
		if err := persistSeed(ctx, cfg, reg, ownerStore, regStore); err != nil {
			return nil, err
		}
	}

	a.Oracles = oracle.NewDirectory()
	if err := a.buildOracles(cfg); err != nil {
		return nil, err
	}
	a.Receivers = receiver.NewDirectory()
	a.ReloadReceivers(cfg)

	a.alerts = alert.NewDispatcher(cfg.Alerts, logger.With("component", "alert"))

	gateOpts := []gate.Option{
		gate.WithOracleTimeout(cfg.Gate.OracleTimeout),
		gate.WithLogger(logger.With("component", "gate")),
		gate.WithAlerts(a.alerts),
	}
	if path := config.ExpandPath(cfg.Audit.Path); path != "" {
		auditLog, err := audit.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		a.closers = append(a.closers, auditLog.Close)
		gateOpts = append(gateOpts, gate.WithAudit(auditLog, configHash))
	}
	if cfg.Graph.URI != "" {
		client, err := graph.NewNeo4jClient(ctx, graph.Options{
			URI:      cfg.Graph.URI,
			Database: cfg.Graph.Database,
			Username: cfg.Graph.Username,
			Password: cfg.Graph.Password,
		})
		if err != nil {
			return nil, err
		}
		a.Graph = graph.NewRecorder(client)
		a.closers = append(a.closers, func() error { return a.Graph.Close(context.Background()) })
		gateOpts = append(gateOpts, gate.WithRecorder(a.Graph))
	}

	res := resolver.New(a.Ledger, logger.With("component", "resolver"), alert.BurnHook{Dispatcher: a.alerts})
	exec := executor.New(a.Ledger, a.Receivers, res,
		executor.WithNotifyTimeout(cfg.Gate.NotifyTimeout),
		executor.WithLogger(logger.With("component", "executor")),
	)
	g := gate.New(reg, a.Oracles, exec, gateOpts...)

	a.Service = token.New(token.Deps{
		Ledger:    a.Ledger,
		Registry:  reg,
		Ownership: own,
		Gate:      g,
		Resolver:  res,
		Metadata: token.Metadata{
			Name:     cfg.Token.Name,
			Symbol:   cfg.Token.Symbol,
			Icon:     cfg.Token.Icon,
			Decimals: cfg.Token.Decimals,
		},
		Logger: logger.With("component", "token"),
	})
	if err := a.Service.Bootstrap(ctx, supply); err != nil {
		return nil, err
	}
	return a, nil
}

// ReloadReceivers replaces the receiver webhooks with those in cfg.
func (a *App) ReloadReceivers(cfg *config.Config) {
	hooks := make(map[model.AccountID]receiver.Hook, len(cfg.Receivers))
	for acct, rc := range cfg.Receivers {
		hooks[model.AccountID(acct)] = receiver.NewWebhook(rc.URL, rc.Headers, cfg.Gate.NotifyTimeout)
	}
	a.Receivers.Replace(hooks)
}

// Close waits for in-flight transfers and alerts, then releases resources
// in reverse order of acquisition.
func (a *App) Close() error {
	if a.Service != nil {
		a.Service.Wait()
	}
	a.alerts.Wait()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) buildOracles(cfg *config.Config) error {
	addrs := make([]string, 0, len(cfg.Oracles))
	for addr := range cfg.Oracles {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	for _, addr := range addrs {
		oc := cfg.Oracles[addr]
		switch {
		case oc.Table != "":
			t, err := oracle.LoadTable(config.ExpandPath(oc.Table))
			if err != nil {
				return fmt.Errorf("oracle %s: %w", addr, err)
			}
			a.Tables = append(a.Tables, t)
			a.Oracles.Set(model.AccountID(addr), t)
		case oc.GRPC != "":
			c, err := oracle.Dial(oc.GRPC)
			if err != nil {
				return fmt.Errorf("oracle %s: %w", addr, err)
			}
			a.closers = append(a.closers, c.Close)
			a.Oracles.Set(model.AccountID(addr), c)
		}
	}
	return nil
}

func seedSnapshot(cfg *config.Config) registry.Snapshot {
	snap := registry.Snapshot{Oracle: model.AccountID(cfg.Registry.Oracle)}
	cats := make([]string, 0, len(cfg.Registry.Thresholds))
	for c := range cfg.Registry.Thresholds {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		snap.Entries = append(snap.Entries, registry.Entry{
			Category:  model.Category(c),
			Threshold: model.RiskScore(clampScore(cfg.Registry.Thresholds[c])),
		})
	}
	return snap
}

// clampScore keeps out-of-range config values out of the uint8 conversion
// so registry validation reports them instead of wrapping.
func clampScore(v int) int {
	if v < 0 || v > 255 {
		return 255
	}
	return v
}

func persistSeed(ctx context.Context, cfg *config.Config, reg *registry.Registry, ownStore owner.Store, rs registry.Store) error {
	if err := ownStore.SaveOwner(ctx, model.AccountID(cfg.Token.Owner)); err != nil {
		return err
	}
	snap := reg.Read()
	if err := rs.SaveOracle(ctx, snap.Oracle); err != nil {
		return err
	}
	for _, e := range snap.Entries {
		if err := rs.SaveThreshold(ctx, e.Category, e.Threshold); err != nil {
			return err
		}
	}
	return nil
}
