package main

import (
	"context"
	"fmt"
	"log"

	"github.com/Dcavise/SEEK-sub000/internal/config"
	"github.com/Dcavise/SEEK-sub000/internal/review"
	"github.com/Dcavise/SEEK-sub000/internal/store"
	"github.com/Dcavise/SEEK-sub000/internal/web"
)

func main() {
	config.LoadEnv()

	port := config.GetEnvInt("SEEK_WEB_PORT", 8080)
	addr := fmt.Sprintf(":%d", port)

	registry := review.NewRegistry()

	// The database is optional. Without it the server still reviews
	// in-memory decisions pushed by a match run in the same process.
	var persister *store.Persister
	conn, err := store.NewConnection()
	if err != nil {
		log.Printf("Running without database: %v", err)
	} else {
		defer conn.Close()
		if err := store.EnsureSchema(context.Background(), conn.DB); err != nil {
			log.Fatalf("Failed to provision schema: %v", err)
		}
		persister = store.NewPersister(conn.DB)

		decisions, err := persister.LoadPendingDecisions(context.Background())
		if err != nil {
			log.Fatalf("Failed to load pending decisions: %v", err)
		}
		for _, d := range decisions {
			registry.Add(d)
		}
		log.Printf("Rehydrated %d pending decisions", len(decisions))
	}

	server := web.NewServer(addr, registry, persister)
	log.Printf("Review server listening on %s", addr)
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
