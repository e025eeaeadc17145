package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-bidding/internal/api"
	"auction-bidding/internal/config"
	"auction-bidding/internal/domain"
	"auction-bidding/internal/infrastructure/leader"
	"auction-bidding/internal/infrastructure/memory"
	"auction-bidding/internal/infrastructure/mysql"
	"auction-bidding/internal/infrastructure/payment"
	"auction-bidding/internal/infrastructure/product"
	"auction-bidding/internal/infrastructure/redis"
	"auction-bidding/internal/infrastructure/websocket"
	"auction-bidding/internal/services"
	"auction-bidding/pkg/logger"
	"auction-bidding/pkg/utils"

	redisClient "github.com/go-redis/redis/v8"
)

type stores struct {
	auctions  domain.AuctionRepository
	bids      domain.BidRepository
	scheduler domain.SchedulerRepository
	db        *sql.DB
}

func openStores(ctx context.Context, cfg *config.Config, log logger.Logger) (*stores, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		log.Warn("Using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return &stores{auctions: store, bids: store, scheduler: store}, nil
	}

	db, err := utils.InitializeMysql(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("Connected to MySQL")

	if cfg.MySQL.Migrate {
		if err := mysql.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		log.Info("Schema migrated")
	}

	return &stores{
		auctions:  mysql.NewMySQLAuctionRepository(db),
		bids:      mysql.NewMySQLBidRepository(db),
		scheduler: mysql.NewMySQLSchedulerRepository(db),
		db:        db,
	}, nil
}

// listenerPublisher delivers events straight to the local live feed when no redis is configured.
type listenerPublisher struct {
	listener *services.EventListener
}

func (p listenerPublisher) PublishBidEvent(ctx context.Context, event *domain.BidEvent) error {
	return p.listener.HandleEvent(event)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal("Failed to load config", "error", err)
	}

	log := logger.NewWithConfig(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	// Runs after every other deferred close so their errors are flushed too.
	defer func() { _ = log.Sync() }()
	log.Info("Starting bidding service", "config", cfg.GetConfigString())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open storage", "driver", cfg.Storage.Driver, "error", err)
	}
	if st.db != nil {
		defer func() {
			if err := st.db.Close(); err != nil {
				log.Error("Failed to close MySQL connection", "error", err)
			}
		}()
	}

	connManager := websocket.NewConnectionManager(log)
	eventListener := services.NewEventListener(connManager, websocket.NewWebSocketNotifier(connManager), log)

	var (
		rdb            *redisClient.Client
		stateCache     domain.AuctionStateCache
		eventPublisher domain.EventPublisher = listenerPublisher{listener: eventListener}
		leaderElection domain.LeaderElection
		rules          domain.IncrementRules
	)
	if cfg.Redis.Address != "" {
		rdb, err = utils.InitializeRedis(ctx, cfg)
		if err != nil {
			log.Fatal("Failed to connect to Redis", "error", err)
		}
		defer rdb.Close()
		log.Info("Connected to Redis", "address", cfg.Redis.Address)

		ruleStore := redis.NewIncrementRuleStore(rdb)
		if err := ruleStore.LoadRules(ctx); err != nil {
			log.Fatal("Failed to load increment rules", "error", err)
		}

		stateCache = redis.NewStateCache(rdb)
		eventPublisher = redis.NewEventPublisher(rdb)
		leaderElection = leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)
		rules = ruleStore
	} else {
		log.Warn("Redis not configured, running as a single instance")
	}

	paymentClient := payment.NewClient(cfg.Payment.URL, cfg.Payment.ServiceSecret, cfg.Payment.Timeout)
	notifier := services.NewCompletionNotifier(st.auctions, st.bids, paymentClient, log)

	bidService := services.NewBidService(st.auctions, st.bids, log,
		services.WithMaxAttempts(cfg.Bidding.MaxAttempts),
		services.WithRetryBackoff(cfg.Bidding.RetryBackoff),
		services.WithEventPublisher(eventPublisher),
	)

	auctionManager := services.NewAuctionManager(
		st.auctions,
		stateCache,
		eventPublisher,
		leaderElection,
		rules,
		notifier,
		cfg.Instance.ID,
		log,
	)
	if cfg.Product.URL != "" {
		auctionManager.SetProductCatalog(product.NewClient(cfg.Product.URL, cfg.Payment.ServiceSecret, cfg.Product.Timeout))
		log.Info("Resolving sellers from product service", "url", cfg.Product.URL)
	}
	scheduler := services.NewCronAuctionScheduler(st.scheduler, auctionManager, cfg.Scheduler.Spec, log)
	auctionManager.SetScheduler(scheduler)

	wsHandler := websocket.NewWebSocketHandler(bidService, auctionManager, connManager, log)
	e := api.NewRouter(api.RouterConfig{
		AuctionManager: auctionManager,
		BidService:     bidService,
		LiveFeed:       wsHandler.Router(),
		ServiceName:    "bidding-service",
		AccessLog:      true,
		Log:            log,
	})

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	if err := scheduler.Start(bgCtx); err != nil {
		log.Fatal("Failed to start scheduler", "error", err)
	}

	if rdb != nil {
		subscriber := redis.NewRedisEventSubscriber(rdb, log)
		go func() {
			if err := eventListener.Start(bgCtx, subscriber); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Event listener stopped", "error", err)
			}
		}()

		go func() {
			for {
				became, err := leaderElection.BecomeLeader(bgCtx, cfg.Instance.ID)
				if err != nil {
					log.Error("Failed to attempt leadership", "error", err)
				} else if became {
					log.Info("Became scheduler leader", "instance_id", cfg.Instance.ID)
				}

				select {
				case <-bgCtx.Done():
					return
				case <-time.After(10 * time.Second):
				}
			}
		}()
	}

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Info("Starting HTTP server", "address", serverAddr)
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down bidding service...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	if err := scheduler.Stop(); err != nil {
		log.Error("Failed to stop scheduler", "error", err)
	}
	stopBackground()

	notifier.Wait()

	if leaderElection != nil {
		if err := leaderElection.ReleaseLeadership(shutdownCtx, cfg.Instance.ID); err != nil {
			log.Error("Failed to release leadership", "error", err)
		}
	}

	log.Info("Bidding service stopped")
}
