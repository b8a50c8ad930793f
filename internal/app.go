package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"ollama-catalog/internal/adapters/filestorage"
	"ollama-catalog/internal/adapters/httpapi"
	"ollama-catalog/internal/adapters/libraryfetcher"
	"ollama-catalog/internal/adapters/memory"
	"ollama-catalog/internal/adapters/null"
	postgres_adapter "ollama-catalog/internal/adapters/postgres"
	rabbitmq_adapter "ollama-catalog/internal/adapters/rabbitmq"
	"ollama-catalog/internal/adapters/redisstore"
	"ollama-catalog/internal/configs"
	"ollama-catalog/internal/constants"
	"ollama-catalog/internal/core/port"
	"ollama-catalog/internal/core/usecase"
	"ollama-catalog/pkg/postgres"
	"ollama-catalog/pkg/rabbitmq/rabbitmq_common"
	"ollama-catalog/pkg/rabbitmq/rabbitmq_consumer"
	"ollama-catalog/pkg/rabbitmq/rabbitmq_producer"
	redisclient "ollama-catalog/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

// catalogStore is what a store factory hands back. history may be nil;
// close releases whatever connection the store opened.
type catalogStore struct {
	storage port.CatalogStoragePort
	history port.SweepHistoryPort
	close   func()
}

type storeFactory func(ctx context.Context, cfg *configs.AppConfig) (catalogStore, error)

// storeFactories maps CATALOG_STORE values to constructors.
var storeFactories = map[string]storeFactory{
	"memory": func(context.Context, *configs.AppConfig) (catalogStore, error) {
		return catalogStore{storage: memory.NewCatalogMemoryStorage(), history: memory.NewSweepHistory(), close: func() {}}, nil
	},
	"null": func(context.Context, *configs.AppConfig) (catalogStore, error) {
		return catalogStore{storage: null.NewCatalogNullStorage(), close: func() {}}, nil
	},
	"file": func(ctx context.Context, cfg *configs.AppConfig) (catalogStore, error) {
		s, err := filestorage.NewCatalogFileStorage(ctx, cfg.Store.File)
		if err != nil {
			return catalogStore{}, err
		}
		return catalogStore{storage: s, history: s, close: func() {}}, nil
	},
	"postgres": newPostgresStore,
	"redis":    newRedisStore,
}

// StoreKinds lists the accepted CATALOG_STORE values.
func StoreKinds() []string {
	kinds := make([]string, 0, len(storeFactories))
	for kind := range storeFactories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func newPostgresStore(ctx context.Context, cfg *configs.AppConfig) (catalogStore, error) {
	pool, err := postgres.NewClient(ctx, postgres.Config{DatabaseURL: cfg.Database.URL})
	if err != nil {
		return catalogStore{}, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	fail := func(err error) (catalogStore, error) {
		pool.Close()
		return catalogStore{}, err
	}
	if err := postgres_adapter.EnsureSchema(ctx, pool); err != nil {
		return fail(err)
	}
	storage, err := postgres_adapter.NewCatalogStorageAdapter(pool)
	if err != nil {
		return fail(err)
	}
	history, err := postgres_adapter.NewSweepHistoryAdapter(pool)
	if err != nil {
		return fail(err)
	}
	slog.Info("App: connected to PostgreSQL")
	return catalogStore{storage: storage, history: history, close: closePool(pool)}, nil
}

func closePool(pool *pgxpool.Pool) func() {
	return func() {
		pool.Close()
		slog.Info("App: PostgreSQL pool closed")
	}
}

func newRedisStore(ctx context.Context, cfg *configs.AppConfig) (catalogStore, error) {
	client, err := redisclient.NewClient(ctx, redisclient.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return catalogStore{}, err
	}
	s, err := redisstore.NewCatalogRedisStorage(client, cfg.Redis.Prefix)
	if err != nil {
		_ = client.Close()
		return catalogStore{}, err
	}
	slog.Info("App: connected to Redis", "addr", cfg.Redis.Addr, "prefix", cfg.Redis.Prefix)
	return catalogStore{storage: s, history: s, close: closeRedis(client)}, nil
}

func closeRedis(client *redis.Client) func() {
	return func() {
		if err := client.Close(); err != nil {
			slog.Warn("App: error closing Redis client", "error", err)
		}
	}
}

// App is the composition root: it owns every connection and wires the
// adapters to the catalog cache.
type App struct {
	config *configs.AppConfig
	store  catalogStore

	eventProducer *rabbitmq_producer.Publisher

	Cache  *usecase.CatalogCache
	Sweeps *usecase.SweepRunner

	// nil when RABBITMQ_URL is unset
	sweepListener port.EventListenerPort
}

// NewApp builds the application. withListener controls whether the sweep
// request consumer is created; one-shot commands do not need it.
func NewApp(ctx context.Context, cfg *configs.AppConfig, withListener bool) (*App, error) {
	factory, ok := storeFactories[cfg.Store.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown CATALOG_STORE %q (want one of %v)", cfg.Store.Kind, StoreKinds())
	}

	fetcher, err := libraryfetcher.NewLibraryFetcherAdapter(cfg.Catalog.BaseURL, cfg.Catalog.RandomDelay, cfg.Catalog.RequestTimeout)
	if err != nil {
		return nil, err
	}

	store, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Kind, err)
	}
	slog.Info("App: catalog store ready", "store", cfg.Store.Kind)

	a := &App{config: cfg, store: store}

	opts := []usecase.Option{usecase.WithCatalogName(cfg.Catalog.Name)}
	if store.history != nil {
		opts = append(opts, usecase.WithSweepHistory(store.history))
	}

	if cfg.RabbitMQ.URL != "" {
		producer, err := rabbitmq_producer.NewPublisher(rabbitmq_producer.PublisherConfig{
			Config:                   rabbitmq_common.Config{URL: cfg.RabbitMQ.URL},
			ExchangeName:             constants.ExchangeCatalog,
			ExchangeType:             "direct",
			DurableExchange:          true,
			DeclareExchangeIfMissing: true,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create event producer: %w", err)
		}
		a.eventProducer = producer

		events, err := rabbitmq_adapter.NewSweepEventsQueueAdapter(producer, constants.RoutingKeySweepReports)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, usecase.WithEvents(events))
	}

	a.Cache, err = usecase.NewCatalogCache(fetcher, store.storage, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Sweeps = usecase.NewSweepRunner(a.Cache)

	if withListener && cfg.RabbitMQ.URL != "" {
		listener, err := rabbitmq_adapter.NewSweepRequestConsumerAdapter(rabbitmq_consumer.ConsumerConfig{
			Config:                 rabbitmq_common.Config{URL: cfg.RabbitMQ.URL},
			QueueName:              constants.QueueSweepRequests,
			DeclareQueue:           true,
			DurableQueue:           true,
			ExchangeNameForBind:    constants.ExchangeCatalog,
			DeclareExchangeForBind: true,
			ExchangeTypeForBind:    "direct",
			DurableExchangeForBind: true,
			RoutingKeyForBind:      constants.RoutingKeySweepRequests,
			PrefetchCount:          1,
			ConsumerTag:            "catalog-sweep-listener",
			MaxInFlight:            1,
		}, a.Sweeps)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.sweepListener = listener
	}

	return a, nil
}

// Serve runs the HTTP API, and the sweep request listener when configured,
// until ctx is cancelled or one of them fails.
func (a *App) Serve(ctx context.Context) error {
	controller, err := httpapi.NewCatalogController(a.Cache, a.Sweeps)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              a.config.HTTP.Addr,
		Handler:           httpapi.NewRouter(controller),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("App: HTTP API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("App: shutting down HTTP API")
		return srv.Shutdown(shutdownCtx)
	})

	if a.sweepListener != nil {
		g.Go(func() error {
			slog.Info("App: starting sweep request listener", "queue", constants.QueueSweepRequests)
			if err := a.sweepListener.Start(gctx); err != nil {
				return fmt.Errorf("sweep request listener: %w", err)
			}
			slog.Info("App: sweep request listener stopped")
			return nil
		})
	}

	return g.Wait()
}

// Close releases every connection. Safe to call on a partly built App.
func (a *App) Close() error {
	var errs []error
	if a.sweepListener != nil {
		if err := a.sweepListener.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing sweep listener: %w", err))
		}
		a.sweepListener = nil
	}
	if a.eventProducer != nil {
		if err := a.eventProducer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing event producer: %w", err))
		}
		a.eventProducer = nil
	}
	if a.store.close != nil {
		a.store.close()
		a.store.close = nil
	}
	return errors.Join(errs...)
}
