package main // Entry point package

import (
	"context" // context for graceful shutdown
	"log"     // Logging library
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"    // loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/cinema-ticketing/internal/booking"
	"github.com/iliyamo/cinema-ticketing/internal/catalog"
	"github.com/iliyamo/cinema-ticketing/internal/config"
	"github.com/iliyamo/cinema-ticketing/internal/database"
	"github.com/iliyamo/cinema-ticketing/internal/handler"
	"github.com/iliyamo/cinema-ticketing/internal/lock"
	"github.com/iliyamo/cinema-ticketing/internal/middleware"
	"github.com/iliyamo/cinema-ticketing/internal/queue"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
	"github.com/iliyamo/cinema-ticketing/internal/router"
	queuepublisher "github.com/iliyamo/cinema-ticketing/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments use the environment
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis backs the soft locks and the rate limiter. Without it the
	// in-memory lock store keeps a single instance usable for
	// development, but holds are not shared across instances.
	rdb := config.NewRedisClient()
	var locks lock.Store
	if rdb != nil {
		locks = lock.NewRedisStore(rdb, "seatlock", lock.DefaultRetryConfig())
	} else {
		log.Println("redis unavailable, using in-process seat locks")
		locks = lock.NewMemoryStore()
	}

	store := repository.NewStore(db)
	users := repository.NewUserRepo(db)
	seats := repository.NewSeatRepo(db)
	seatTypes := catalog.NewSeatTypeCache(seats.SeatTypes, 5*time.Minute)

	gateway := booking.NewSimulatedGateway()
	publisher := queuepublisher.New()

	coordinator := booking.NewCoordinator(store, locks, booking.DefaultRetryPolicy(), nil)
	orchestrator := booking.NewOrchestrator(store, gateway, locks, publisher, cfg.Currency, cfg.CancelGrace, nil)

	reaperCfg := booking.DefaultReaperConfig()
	reaperCfg.Interval = cfg.ReapInterval
	reaperCfg.Timeout = cfg.ReapTimeout
	reaperCfg.BatchSize = cfg.ReapBatchSize
	reaper := booking.NewReaper(store, locks, publisher, reaperCfg, nil)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := reaper.Start(ctx); err != nil {
		log.Fatalf("reaper: %v", err)
	}
	defer reaper.Stop()

	go func() {
		if err := queue.StartOrderConsumer(); err != nil {
			log.Printf("order consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	if rdb != nil {
		e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	}

	sessions := handler.NewSessionHandler(store.Sessions, seats, locks, seatTypes)
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users))
	router.RegisterPublic(e, sessions)
	router.RegisterBooking(e, handler.NewBookingHandler(
		coordinator, orchestrator, locks, store.Orders, store, cfg.HoldTTL), cfg.JWTSecret)
	router.RegisterAdmin(e, sessions,
		handler.NewPricingHandler(store.Pricing),
		handler.NewTicketHandler(store.Tickets, store.Sessions),
		cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	go func() {
		if err := e.Start(addr); err != nil {
			log.Printf("server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
