package main // Entry point package

import (
	"context"
	"errors"
	"log" // Logging library
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"                      // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // request logging and panic recovery

	"github.com/iliyamo/route-ticketing/internal/cache"
	"github.com/iliyamo/route-ticketing/internal/config" // Internal config loader
	"github.com/iliyamo/route-ticketing/internal/database"
	"github.com/iliyamo/route-ticketing/internal/handler"
	"github.com/iliyamo/route-ticketing/internal/middleware"
	"github.com/iliyamo/route-ticketing/internal/queue"
	"github.com/iliyamo/route-ticketing/internal/repository"
	"github.com/iliyamo/route-ticketing/internal/router" // Internal router setup
	"github.com/iliyamo/route-ticketing/internal/service"
	"github.com/iliyamo/route-ticketing/internal/ticketing"
)

// archiveDir receives the consumer's tickets.log and verdicts.log.
const archiveDir = "logs"

func main() {
	cfg := config.Load() // Load environment config
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := ticketing.NewStore(cfg.Geometry, cfg.Windows)
	if err != nil {
		log.Fatalf("store: %v", err)
	}

	// Broker: publish sale/refund/verdict events and archive them locally.
	var events service.EventSink
	if cfg.RabbitURL != "" {
		pub := service.NewPublisher(cfg.RabbitURL)
		defer pub.Close()
		d := service.NewDispatcher(pub, 4096)
		go d.Run(ctx)
		events = d
		go func() {
			if err := queue.StartTicketConsumer(ctx, cfg.RabbitURL, archiveDir); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("ticket-consumer: %v", err)
			}
		}()
	}
	tickets := service.NewTicketService(store, cfg.RecordHistory, events)

	// Redis is optional: nil disables rate limiting and the verdict cache.
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}
	checker := &service.VerificationService{Timeout: cfg.VerifyTimeout, Events: events}
	vcfg := config.LoadVerdictCacheConfig()
	if v := cache.NewVerdicts(vcfg, rdb); v != nil {
		checker.Cache = v
		checker.MaxCached = vcfg.MaxRecords
	}

	if cfg.ReportsEnabled() {
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			log.Printf("reports: database unavailable, report storage disabled: %v", err)
		} else {
			defer db.Close()
			mctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err = database.Migrate(mctx, db)
			cancel()
			if err != nil {
				log.Fatalf("reports: migrate: %v", err)
			}
			checker.Reports = repository.NewReportRepo(db)
		}
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	th := handler.NewTicketHandler(tickets)
	router.RegisterRoutes(e, &handler.InfoHandler{Tickets: tickets})
	router.RegisterAuth(e, handler.NewAuthHandler(cfg), cfg.JWTSecret)
	router.RegisterTickets(e, th, cfg.JWTSecret, middleware.NewSalesLimiter(config.LoadRateLimitConfig(), rdb))
	router.RegisterOperator(e, th, handler.NewVerifyHandler(tickets, checker), cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, %s, windows=%d)", addr, cfg.Env, cfg.Geometry, cfg.Windows)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err) // Log and exit if server fails
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
