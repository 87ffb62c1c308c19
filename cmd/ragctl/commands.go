package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"rag-chatbot-be/internal/bootstrap"
	"rag-chatbot-be/internal/pkg/logger"
	"rag-chatbot-be/pkg/events"
	pktNats "rag-chatbot-be/pkg/nats"
	"rag-chatbot-be/pkg/rag"
	"rag-chatbot-be/pkg/utils"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the registry schema and chunk table",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Ingest local files for a user",
	Long:  `Stores, registers and indexes local files exactly as an upload through the API would.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

var purgeCmd = &cobra.Command{
	Use:   "purge [document-id]",
	Short: "Remove a document's entries from the vector index",
	Args:  cobra.ExactArgs(1),
	RunE:  runPurge,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Purge index entries left behind by recently deleted documents",
	Args:  cobra.NoArgs,
	RunE:  runSweep,
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect domain events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print new domain events until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runEventsTail,
}

var (
	ingestUser   string
	ingestSource string
	tailSubject  string
	tailNatsURL  string
)

func init() {
	ingestCmd.Flags().StringVarP(&ingestUser, "user", "u", "", "Owner user id (required)")
	ingestCmd.Flags().StringVarP(&ingestSource, "source", "s", "", "Source label stored on every chunk")
	eventsTailCmd.Flags().StringVar(&tailSubject, "subject", "events.>", "Subject filter")
	eventsTailCmd.Flags().StringVar(&tailNatsURL, "nats-url", "", "NATS server URL (defaults to NATS_URL)")

	eventsCmd.AddCommand(eventsTailCmd)
	rootCmd.AddCommand(migrateCmd, ingestCmd, purgeCmd, sweepCmd, eventsCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, db, err := openDB()
	if err != nil {
		return err
	}
	if err := bootstrap.Migrate(db, cfg); err != nil {
		return err
	}
	success.Fprintln(cmd.OutOrStdout(), "Migration completed")
	return nil
}

// localUpload exposes a file on disk the way a multipart part is exposed.
func localUpload(path string) (rag.Upload, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return rag.Upload{}, err
	}
	if stat.IsDir() {
		return rag.Upload{}, fmt.Errorf("%s is a directory", path)
	}
	return rag.Upload{
		Name: filepath.Base(path),
		Size: stat.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	owner, err := uuid.Parse(ingestUser)
	if err != nil {
		return fmt.Errorf("--user must be a user id: %w", err)
	}
	uploads := make([]rag.Upload, 0, len(args))
	for _, path := range args {
		upload, err := localUpload(path)
		if err != nil {
			return err
		}
		uploads = append(uploads, upload)
	}

	c, err := openContainer(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	for _, u := range uploads {
		info.Fprintf(cmd.OutOrStdout(), "  + %s\n", describeUpload(u))
	}
	res, err := c.Ingestor.Ingest(cmd.Context(), rag.IngestRequest{OwnerID: owner, Source: ingestSource, Files: uploads})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	success.Fprintf(out, "Ingested %d file(s), %d chunk(s)\n", len(res.Files), res.Chunks)
	for i, name := range res.Files {
		fmt.Fprintf(out, "  %s  %s\n", res.DocumentIDs[i], name)
	}
	return nil
}

func runPurge(cmd *cobra.Command, args []string) error {
	documentID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid document id %q: %w", args[0], err)
	}

	c, err := openContainer(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	removed, err := c.Purger.PurgeDocument(cmd.Context(), documentID)
	if err != nil {
		return err
	}
	if removed == 0 {
		warning.Fprintf(cmd.OutOrStdout(), "No index entries for %s\n", documentID)
		return nil
	}
	success.Fprintf(cmd.OutOrStdout(), "Removed %d index entries for %s\n", removed, documentID)
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	c, err := openContainer(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	removed, err := c.CleanupConsumer.Sweep(cmd.Context())
	success.Fprintf(cmd.OutOrStdout(), "Removed %d stale index entries\n", removed)
	return err
}

func runEventsTail(cmd *cobra.Command, args []string) error {
	url := tailNatsURL
	if url == "" {
		url = os.Getenv("NATS_URL")
	}
	if url == "" {
		return fmt.Errorf("no NATS server: pass --nats-url or set NATS_URL")
	}

	sub, err := pktNats.NewSubscriber(url, logger.NewNopLogger())
	if err != nil {
		return err
	}
	defer sub.Close()

	out := cmd.OutOrStdout()
	// An empty durable name makes the consumer ephemeral and start at new messages.
	err = sub.Subscribe(cmd.Context(), tailSubject, "", func(_ context.Context, event events.Event) error {
		printEvent(out, event)
		return nil
	})
	if err != nil {
		return err
	}

	info.Fprintf(out, "Listening on %s (Ctrl-C to stop)\n", tailSubject)
	<-cmd.Context().Done()
	return nil
}

func printEvent(out io.Writer, event events.Event) {
	info.Fprintf(out, "%s ", event.Timestamp().Format("15:04:05"))
	fmt.Fprintf(out, "%s", event.EventType())
	for _, key := range []string{"user_id", "document_id", "chunks"} {
		if v, ok := event.Payload()[key]; ok {
			fmt.Fprintf(out, " %s=%v", key, v)
		}
	}
	fmt.Fprintln(out)
}

func describeUpload(u rag.Upload) string {
	return fmt.Sprintf("%s (%s)", u.Name, utils.HumanSize(u.Size))
}
