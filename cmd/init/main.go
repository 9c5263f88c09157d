// Command init prepares the backing stores: it creates the relational
// schema and the object storage bucket. Safe to run any number of times.
package main

import (
	"context"
	"log"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"docstore/internal/config"
	"docstore/internal/database"
	"docstore/internal/database/migration"
	"docstore/internal/repository/postgres"
	"docstore/internal/service"
	"docstore/internal/storage"
)

func main() {
	cfg := config.Load()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		log.Fatalf("failed to initialize object storage: %v", err)
	}

	svc := service.NewDataClient(objStore, postgres.NewDocumentPostgres(db), postgres.NewLinePostgres(db), func(ctx context.Context) error {
		return migration.EnsureMigrated(ctx, db, time.UTC, cfg.Database.Host)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := svc.Init(ctx); err != nil {
		log.Fatalf("init failed: %v", err)
	}

	log.Println("schema and bucket ready")
}
