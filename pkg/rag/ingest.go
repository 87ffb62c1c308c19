package rag

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rag-chatbot-be/internal/pkg/apperror"
	"rag-chatbot-be/internal/pkg/logger"
	"rag-chatbot-be/pkg/chunker"
	"rag-chatbot-be/pkg/events"
	"rag-chatbot-be/pkg/loader"
	"rag-chatbot-be/pkg/storage"
	"rag-chatbot-be/pkg/utils"
	"rag-chatbot-be/pkg/vectorindex"
)

const ingestModule = "INGEST"

var tracer trace.Tracer = otel.Tracer("rag-chatbot-be/pkg/rag")

// DocumentRecord is what the ingestor asks the registry to persist for each file.
type DocumentRecord struct {
	ID         uuid.UUID
	OwnerID    uuid.UUID
	Title      string
	FileName   string
	FilePath   string
	FileSize   int64
	FileType   string
	Collection string
}

// DocumentSink is the registry side of ingestion. Discard soft-deletes rows
// created by a batch that could not be indexed.
type DocumentSink interface {
	Register(ctx context.Context, record DocumentRecord) error
	Discard(ctx context.Context, ids []uuid.UUID) error
}

// Upload is one incoming file. Size is checked before Open is ever called.
type Upload struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

type IngestRequest struct {
	OwnerID uuid.UUID
	Source  string
	Files   []Upload
}

type IngestResult struct {
	DocumentIDs []uuid.UUID `json:"document_ids"`
	Files       []string    `json:"files"`
	Chunks      int         `json:"chunks"`
}

type IngestorConfig struct {
	MaxFileBytes    int64
	MaxFiles        int
	UpstreamTimeout time.Duration
}

type Ingestor struct {
	storage  storage.FileStorage
	registry DocumentSink
	loader   loader.Loader
	splitter *chunker.Splitter
	index    vectorindex.Index
	events   events.Publisher
	logger   logger.ILogger
	cfg      IngestorConfig
	now      func() time.Time
}

func NewIngestor(
	store storage.FileStorage,
	registry DocumentSink,
	ld loader.Loader,
	splitter *chunker.Splitter,
	index vectorindex.Index,
	publisher events.Publisher,
	log logger.ILogger,
	cfg IngestorConfig,
) *Ingestor {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Ingestor{
		storage:  store,
		registry: registry,
		loader:   ld,
		splitter: splitter,
		index:    index,
		events:   publisher,
		logger:   log,
		cfg:      cfg,
		now:      time.Now,
	}
}

// saved tracks what a batch has written so far, for rollback.
type saved struct {
	record DocumentRecord
	name   string
}

// Ingest stores, registers and indexes a batch of files. The order is
// file -> registry -> index, so an index entry never exists without its
// registry row. If nothing in the batch yields a chunk, or the index rejects
// the batch, every row of the batch is discarded and its file removed.
func (i *Ingestor) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if err := i.validate(req); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "rag.ingest")
	defer span.End()
	span.SetAttributes(
		attribute.String("owner_id", req.OwnerID.String()),
		attribute.Int("files", len(req.Files)),
	)

	var batch []saved
	for _, upload := range req.Files {
		s, err := i.store(ctx, req.OwnerID, upload)
		if err != nil {
			i.rollback(ctx, batch)
			span.RecordError(err)
			span.SetStatus(codes.Error, "store failed")
			return nil, apperror.Internal("Failed to store upload", err)
		}
		batch = append(batch, *s)
	}

	var chunks []vectorindex.Chunk
	for _, s := range batch {
		chunks = append(chunks, i.chunkFile(ctx, req.OwnerID, req.Source, s)...)
	}

	if len(chunks) == 0 {
		i.rollback(ctx, batch)
		span.SetStatus(codes.Error, "no readable documents")
		return nil, apperror.Validation("No readable documents found.", map[string]string{
			"files": "None of the uploaded files contained readable text.",
		})
	}

	addCtx, cancel := i.upstreamContext(ctx)
	_, err := i.index.Add(addCtx, chunks)
	cancel()
	if err != nil {
		i.logger.Error(ingestModule, "Vector index rejected batch", map[string]interface{}{
			"owner_id": req.OwnerID.String(),
			"chunks":   len(chunks),
			"error":    err.Error(),
		})
		i.rollback(ctx, batch)
		span.RecordError(err)
		span.SetStatus(codes.Error, "index add failed")
		return nil, apperror.Upstream("Vector index unavailable", err)
	}

	BestEffort("persist", i.index.Persist(ctx)).Log(i.logger, ingestModule, nil)

	result := &IngestResult{Chunks: len(chunks)}
	for _, s := range batch {
		result.DocumentIDs = append(result.DocumentIDs, s.record.ID)
		result.Files = append(result.Files, s.name)
	}

	ids := make([]string, 0, len(result.DocumentIDs))
	for _, id := range result.DocumentIDs {
		ids = append(ids, id.String())
	}
	BestEffort("publish", i.events.Publish(ctx, events.New(events.DocumentUploaded, map[string]interface{}{
		"user_id":      req.OwnerID.String(),
		"document_ids": ids,
		"files":        result.Files,
		"chunks":       result.Chunks,
	}))).Log(i.logger, ingestModule, nil)

	span.SetAttributes(attribute.Int("chunks", result.Chunks))
	i.logger.Info(ingestModule, "Documents ingested", map[string]interface{}{
		"owner_id": req.OwnerID.String(),
		"files":    result.Files,
		"chunks":   result.Chunks,
	})
	return result, nil
}

// validate runs before any side effect.
func (i *Ingestor) validate(req IngestRequest) error {
	if req.OwnerID == uuid.Nil {
		return apperror.Unauthorized("Authentication credentials were not provided.")
	}
	if len(req.Files) == 0 {
		return apperror.Validation("Validation failed", map[string]string{
			"files": "No file was submitted.",
		})
	}
	if i.cfg.MaxFiles > 0 && len(req.Files) > i.cfg.MaxFiles {
		return apperror.Validation("Validation failed", map[string]string{
			"files": fmt.Sprintf("Ensure this field has no more than %d files.", i.cfg.MaxFiles),
		})
	}
	for _, f := range req.Files {
		if i.cfg.MaxFileBytes > 0 && f.Size > i.cfg.MaxFileBytes {
			return apperror.Validation("File too large", map[string]string{
				"files": fmt.Sprintf("%s is %s; the maximum is %s.",
					storage.SanitizeName(f.Name), utils.HumanSize(f.Size), utils.HumanSize(i.cfg.MaxFileBytes)),
			})
		}
		if f.Open == nil {
			return apperror.Validation("Validation failed", map[string]string{
				"files": "The submitted data was not a file.",
			})
		}
	}
	return nil
}

func (i *Ingestor) store(ctx context.Context, owner uuid.UUID, upload Upload) (*saved, error) {
	r, err := upload.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", upload.Name, err)
	}
	defer r.Close()

	path, size, err := i.storage.Save(ctx, owner.String(), upload.Name, r)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(path)
	record := DocumentRecord{
		ID:         uuid.New(),
		OwnerID:    owner,
		Title:      strings.TrimSuffix(name, filepath.Ext(name)),
		FileName:   name,
		FilePath:   path,
		FileSize:   size,
		FileType:   loader.DetectType(path),
		Collection: CollectionRef(owner, name, i.now()),
	}
	if err := i.registry.Register(ctx, record); err != nil {
		BestEffort("remove_file", i.storage.Delete(path)).Log(i.logger, ingestModule, map[string]interface{}{"path": path})
		return nil, fmt.Errorf("register %s: %w", name, err)
	}
	return &saved{record: record, name: name}, nil
}

// chunkFile loads and splits one stored file. Load errors are logged and the
// file contributes nothing; the rest of the batch carries on.
func (i *Ingestor) chunkFile(ctx context.Context, owner uuid.UUID, source string, s saved) []vectorindex.Chunk {
	records, err := i.loader.Load(ctx, s.record.FilePath, source)
	if err != nil {
		i.logger.Warn(ingestModule, "Could not load file", map[string]interface{}{
			"file":  s.name,
			"error": err.Error(),
		})
		return nil
	}

	parts := i.splitter.SplitRecords(records)
	out := make([]vectorindex.Chunk, 0, len(parts))
	for _, part := range parts {
		meta := make(map[string]string, len(part.Metadata)+4)
		for k, v := range part.Metadata {
			meta[k] = fmt.Sprint(v)
		}
		meta[vectorindex.MetaUserID] = owner.String()
		meta[vectorindex.MetaDocumentID] = s.record.ID.String()
		meta[vectorindex.MetaCollection] = s.record.Collection
		if meta[vectorindex.MetaSource] == "" {
			meta[vectorindex.MetaSource] = s.name
		}
		out = append(out, vectorindex.Chunk{
			ID:       uuid.NewString(),
			Content:  part.Text,
			Metadata: meta,
		})
	}
	return out
}

func (i *Ingestor) rollback(ctx context.Context, batch []saved) {
	if len(batch) == 0 {
		return
	}
	ids := make([]uuid.UUID, 0, len(batch))
	for _, s := range batch {
		ids = append(ids, s.record.ID)
		BestEffort("remove_file", i.storage.Delete(s.record.FilePath)).
			Log(i.logger, ingestModule, map[string]interface{}{"path": s.record.FilePath})
	}
	// Detached so a cancelled request still leaves the registry consistent.
	BestEffort("discard_records", i.registry.Discard(context.WithoutCancel(ctx), ids)).
		Log(i.logger, ingestModule, map[string]interface{}{"documents": len(ids)})
}

func (i *Ingestor) upstreamContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if i.cfg.UpstreamTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, i.cfg.UpstreamTimeout)
}
