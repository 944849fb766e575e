package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/joho/godotenv"

	"github.com/Mani87-nq/yardbooks-web-sub005/internal/metrics"
	"github.com/Mani87-nq/yardbooks-web-sub005/internal/modules/connectivity"
	"github.com/Mani87-nq/yardbooks-web-sub005/internal/modules/localstore"
	"github.com/Mani87-nq/yardbooks-web-sub005/internal/modules/syncengine"
)

// The terminal process keeps a POS lane usable without a network: it owns
// the on-device store, watches connectivity, and drains the queue to the
// server whenever a link is available.
func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("no .env file, using environment as-is")
	}

	serverURL := os.Getenv("SERVER_URL")
	if serverURL == "" {
		log.Fatal("SERVER_URL is required")
	}
	dbPath := os.Getenv("TERMINAL_DB")
	if dbPath == "" {
		dbPath = "terminal.db"
	}

	store, err := localstore.Open(dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()
	fmt.Printf("Local store ready at %s\n", dbPath)

	metrics.Register()

	// The session is acquired lazily and re-acquired whenever the server
	// stops accepting it, so a terminal that boots offline or outlives its
	// token still syncs once a login succeeds.
	tokens := syncengine.NewLoginTokenSource(serverURL, syncengine.Credentials{
		TenantID: os.Getenv("TERMINAL_TENANT_ID"),
		Code:     os.Getenv("TERMINAL_OPERATOR_CODE"),
		PIN:      os.Getenv("TERMINAL_OPERATOR_PIN"),
	})

	ctx := context.Background()

	monitor := connectivity.NewMonitor(connectivity.NewHTTPProber(serverURL + "/api/v1/health"))
	monitor.Subscribe(func(s connectivity.State) {
		log.Printf("connectivity: %s (pending %d)", s.Status, s.PendingSyncCount)
	})
	monitor.Start(ctx)

	client := syncengine.NewHTTPClient(serverURL, tokens, monitor)
	engine := syncengine.NewEngine(store, client, monitor)
	engine.Schedule(ctx)

	scheduler := gocron.NewScheduler(time.UTC)
	_, err = scheduler.Every(syncengine.CyclePeriod).Do(func() {
		err := engine.RunCycle(ctx)
		if err != nil && !errors.Is(err, syncengine.ErrCycleInProgress) {
			log.Printf("WARN: sync cycle: %v", err)
		}
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("Sync engine scheduled, terminal running")
	scheduler.StartBlocking()
}
