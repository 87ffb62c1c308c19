// Command ragctl is the operator CLI: schema migration, local ingestion and
// index maintenance against the same configuration as the REST server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"rag-chatbot-be/internal/bootstrap"
	"rag-chatbot-be/internal/config"
	"rag-chatbot-be/pkg/database"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "ragctl",
	Short:         "Operate the document RAG backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("ragctl version %s\n", version)
	},
}

var (
	success = color.New(color.FgGreen)
	warning = color.New(color.FgYellow)
	failure = color.New(color.FgRed)
	info    = color.New(color.FgCyan)
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

// openDB loads configuration and connects to the registry database.
func openDB() (*config.Config, *gorm.DB, error) {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		return nil, nil, fmt.Errorf("DB_CONNECTION_STRING is not set")
	}
	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, false)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, db, nil
}

// openContainer wires the full dependency graph, as the server does.
func openContainer(ctx context.Context) (*bootstrap.Container, error) {
	cfg, db, err := openDB()
	if err != nil {
		return nil, err
	}
	return bootstrap.NewContainer(ctx, db, cfg)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		failure.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
