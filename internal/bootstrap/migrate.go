package bootstrap

import (
	"fmt"
	"log"

	"rag-chatbot-be/internal/config"
	"rag-chatbot-be/internal/model"
	"rag-chatbot-be/pkg/vectorindex"

	"gorm.io/gorm"
)

// Migrate brings the registry schema (and, for the pgvector backend, the
// chunk table) up to date. It is idempotent.
func Migrate(db *gorm.DB, cfg *config.Config) error {
	isPostgres := db.Dialector.Name() == "postgres"

	if isPostgres {
		log.Println("Step 1: Setting up Extensions...")
		for _, stmt := range []string{
			`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
			`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
		} {
			if err := db.Exec(stmt).Error; err != nil {
				log.Printf("Warn: Failed to execute setup SQL: %v. Continuing...", err)
			}
		}
	}

	models := model.All()
	log.Printf("Step 2: Running AutoMigrate for %d Tables...", len(models))
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	if isPostgres && cfg.VectorStore.Backend == "pgvector" {
		log.Printf("Step 3: Ensuring chunk table (dimension %d)...", cfg.VectorStore.Dimension)
		if err := vectorindex.Migrate(db, cfg.VectorStore.Dimension); err != nil {
			return err
		}
	}
	return nil
}
