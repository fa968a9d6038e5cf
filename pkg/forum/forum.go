// Package forum assembles the client layer: gateway, resource stores,
// incremental search, wallet manager, and session coordinator, wired from
// one configuration.
package forum

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/msu-forum/client_layer/internal/config"
	"github.com/msu-forum/client_layer/internal/gateway"
	"github.com/msu-forum/client_layer/internal/logging"
	"github.com/msu-forum/client_layer/internal/metrics"
	"github.com/msu-forum/client_layer/internal/search"
	"github.com/msu-forum/client_layer/internal/session"
	"github.com/msu-forum/client_layer/internal/store"
	"github.com/msu-forum/client_layer/internal/wallet"
)

// Client is the assembled client layer.
type Client struct {
	Gateway   *gateway.Client
	Questions *store.Store[gateway.Question]
	Tags      *store.Store[gateway.Tag]
	Search    *search.Engine
	Wallet    *wallet.Manager
	Session   *session.Coordinator
	Guard     *session.Guard
	Metrics   *metrics.Metrics

	detachWallet func()
	log          zerolog.Logger
}

// Options adjusts the assembly beyond what configuration covers.
type Options struct {
	// Provider is the wallet provider. Nil models no installed wallet.
	Provider wallet.Provider
	// Storage overrides the session snapshot store. Nil selects file
	// storage at cfg.SnapshotPath, or memory when the path is empty.
	Storage session.Storage
	// OnSelect receives search selections.
	OnSelect func(gateway.Question)
}

// New wires the client layer from cfg.
func New(cfg config.Config, opts Options) *Client {
	log := logging.New("forum", cfg.LogLevel, cfg.LogFormat)
	m := metrics.New()

	gw := gateway.NewClient(gateway.ClientConfig{
		BaseURL:       cfg.APIURL,
		Timeout:       cfg.RequestTimeout,
		AuthTimeout:   cfg.RequestTimeout,
		LogoutTimeout: cfg.LogoutTimeout,
		HealthTimeout: cfg.HealthTimeout,
		Logger:        log.With().Str("component", "gateway").Logger(),
		Metrics:       m,
	})

	questions := store.New(store.Config[gateway.Question]{
		Name:       "questions",
		Loader:     gw.Questions,
		IDOf:       func(q gateway.Question) int { return q.ID },
		Attempts:   cfg.LoadAttempts,
		RetryDelay: cfg.RetryDelay,
		CoolDown:   cfg.CoolDown,
		Logger:     log.With().Str("component", "store").Logger(),
		Metrics:    m,
	})
	tags := store.New(store.Config[gateway.Tag]{
		Name:       "tags",
		Loader:     gw.Tags,
		IDOf:       func(t gateway.Tag) int { return t.ID },
		Attempts:   cfg.LoadAttempts,
		RetryDelay: cfg.RetryDelay,
		CoolDown:   cfg.CoolDown,
		Logger:     log.With().Str("component", "store").Logger(),
		Metrics:    m,
	})

	engine := search.New(search.Config{
		Searcher:  gw.SearchQuestions,
		Threshold: cfg.SearchThreshold,
		CacheSize: cfg.SearchCacheSize,
		OnSelect:  opts.OnSelect,
		Logger:    log.With().Str("component", "search").Logger(),
		Metrics:   m,
	})

	// The search engine's base collection follows the question store.
	questions.Subscribe(func(snap store.Snapshot[gateway.Question]) {
		if !snap.Loading && snap.Err == nil {
			engine.SetBase(snap.Items)
		}
	})

	walletMgr := wallet.NewManager(opts.Provider, log.With().Str("component", "wallet").Logger())

	storage := opts.Storage
	if storage == nil {
		if cfg.SnapshotPath != "" {
			storage = session.NewFileStorage(cfg.SnapshotPath)
		} else {
			storage = session.NewMemoryStorage()
		}
	}
	coordinator := session.NewCoordinator(gw, storage, log.With().Str("component", "session").Logger())
	detach := coordinator.AttachWallet(walletMgr)

	return &Client{
		Gateway:      gw,
		Questions:    questions,
		Tags:         tags,
		Search:       engine,
		Wallet:       walletMgr,
		Session:      coordinator,
		Guard:        session.NewGuard(coordinator, "/"),
		Metrics:      m,
		detachWallet: detach,
		log:          log,
	}
}

// Start hydrates the session and restores any wallet connection the
// provider already holds.
func (c *Client) Start(ctx context.Context) {
	c.Session.Start(ctx)
	if err := c.Wallet.CheckInitialConnection(ctx); err != nil {
		c.log.Warn().Err(err).Msg("initial wallet check failed")
	}
}

// Close detaches wallet listeners.
func (c *Client) Close() {
	if c.detachWallet != nil {
		c.detachWallet()
	}
	c.Wallet.Close()
}
