// trackerd is the dugout tracker daemon: it serves the scorekeeping API
// for the browser UI and overlays Polymarket moneyline prices on the game.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phenomenon0/dugout-tracker/pkg/baseball/outcomes"
	"github.com/phenomenon0/dugout-tracker/pkg/baseball/state"
	"github.com/phenomenon0/dugout-tracker/pkg/polymarket/clob"
	"github.com/phenomenon0/dugout-tracker/pkg/polymarket/gamma"
	"github.com/phenomenon0/dugout-tracker/pkg/server"
	"github.com/phenomenon0/dugout-tracker/pkg/tracker"
	"github.com/phenomenon0/dugout-tracker/pkg/tracker/metrics"
	"github.com/phenomenon0/dugout-tracker/pkg/tracker/store"

	"github.com/shopspring/decimal"
)

var (
	// Flags
	httpAddr     = flag.String("http", ":8080", "HTTP server address")
	dataDir      = flag.String("data-dir", "./data", "Directory for game saves")
	privateKey   = flag.String("key", "", "Private key for live orders (or POLYMARKET_PRIVATE_KEY env)")
	dryRun       = flag.Bool("dry-run", true, "Record orders in the ledger instead of posting them")
	pollInterval = flag.Duration("poll-interval", 5*time.Second, "Market price poll interval")
	advisorURL   = flag.String("advisor", "", "Advisor service base URL (or TRACKER_ADVISOR_URL env)")
	maxOrder     = flag.Float64("max-order", 100, "Max single order in USDC")
	defaultOrder = flag.Float64("default-order", 10, "Default order size in USDC")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("Starting dugout tracker daemon")

	app, err := newApp()
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go app.hub.Run()
	go func() {
		if err := app.srv.Start(); err != nil {
			log.Printf("[HTTP] server stopped: %v", err)
			sigCh <- syscall.SIGTERM
		}
	}()

	log.Printf("Tracker running (dry-run=%v, http=%s)", app.desk.DryRun(), *httpAddr)
	log.Printf("WebSocket streaming available at ws://%s/ws", *httpAddr)

	<-sigCh
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.srv.Stop(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	app.manager.Shutdown()

	if app.desk.DryRun() {
		log.Printf("Final ledger: %d orders, $%s spent",
			app.desk.Ledger().Len(), app.desk.Ledger().TotalSpent())
	}
	log.Println("Goodbye!")
}

type app struct {
	manager *tracker.Manager
	desk    *tracker.OrderDesk
	hub     *server.Hub
	srv     *server.Server
}

func newApp() (*app, error) {
	m := metrics.NewTrackerMetrics()
	hub := server.NewHub(m)

	tables, err := outcomes.Load()
	if err != nil {
		return nil, fmt.Errorf("load outcome tables: %w", err)
	}

	gammaClient := gamma.NewClient()

	// CLOB client: signing when a key is available, public otherwise
	key := *privateKey
	if key == "" {
		key = os.Getenv("POLYMARKET_PRIVATE_KEY")
	}

	var clobClient *clob.Client
	var poster tracker.OrderPoster
	if key != "" {
		clobClient, err = clob.NewClient(key)
		if err != nil {
			return nil, fmt.Errorf("create CLOB client: %w", err)
		}
		log.Printf("CLOB client initialized (address: %s)", clobClient.Address())
		if !*dryRun {
			if _, err := clobClient.CreateOrDeriveAPIKey(context.Background()); err != nil {
				return nil, fmt.Errorf("derive API credentials: %w", err)
			}
			poster = clobClient
		}
	} else {
		log.Println("No private key provided - prices only, orders stay in dry-run")
		clobClient = clob.NewPublicClient()
	}

	limits := tracker.DefaultOrderLimits()
	limits.MaxOrderSize = decimal.NewFromFloat(*maxOrder)
	desk := tracker.NewOrderDesk(limits, poster, *dryRun, m)

	manager := tracker.NewManager(tracker.ManagerConfig{
		Gamma:        gammaClient,
		Prices:       clobClient,
		PollInterval: *pollInterval,
		Metrics:      m,
		OnState: func(sessionID string, gs state.GameState) {
			hub.BroadcastState(sessionID, gs)
		},
		OnPrices: func(sessionID string, p tracker.MarketPrices) {
			hub.BroadcastPrices(sessionID, p)
		},
	})

	advisorBase := *advisorURL
	if advisorBase == "" {
		advisorBase = os.Getenv("TRACKER_ADVISOR_URL")
	}
	advisor := tracker.NewAdvisorClient(advisorBase, m)
	if advisor.Enabled() {
		log.Printf("Advisor configured at %s", advisorBase)
	}

	srv := server.New(server.Config{
		Addr:             *httpAddr,
		Manager:          manager,
		Tables:           tables,
		Desk:             desk,
		Advisor:          advisor,
		Store:            store.New(*dataDir),
		Hub:              hub,
		Metrics:          m,
		DefaultOrderUSDC: *defaultOrder,
	})

	return &app{
		manager: manager,
		desk:    desk,
		hub:     hub,
		srv:     srv,
	}, nil
}
