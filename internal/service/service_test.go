package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chatbot-be/internal/config"
	"rag-chatbot-be/internal/dto"
	"rag-chatbot-be/internal/model"
	"rag-chatbot-be/internal/pkg/apperror"
	"rag-chatbot-be/internal/pkg/logger"
	"rag-chatbot-be/internal/repository/specification"
	"rag-chatbot-be/internal/repository/unitofwork"
	"rag-chatbot-be/pkg/chunker"
	"rag-chatbot-be/pkg/database/dbtest"
	"rag-chatbot-be/pkg/embedding/embeddingtest"
	"rag-chatbot-be/pkg/events"
	"rag-chatbot-be/pkg/loader"
	"rag-chatbot-be/pkg/rag"
	"rag-chatbot-be/pkg/rag/ragtest"
	"rag-chatbot-be/pkg/storage"
	"rag-chatbot-be/pkg/vectorindex"
)

const testSecret = "test-secret"

type queued struct {
	payload []byte
	attempt int
}

// fakeQueue records what would have gone onto the cleanup topic.
type fakeQueue struct {
	mu    sync.Mutex
	items []queued
	Err   error
}

func (q *fakeQueue) Publish(ctx context.Context, payload []byte) error {
	return q.PublishAttempt(ctx, payload, 0)
}

func (q *fakeQueue) PublishAttempt(_ context.Context, payload []byte, attempt int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return q.Err
	}
	q.items = append(q.items, queued{payload: payload, attempt: attempt})
	return nil
}

func (q *fakeQueue) Items() []queued {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queued(nil), q.items...)
}

type fakeLogs struct {
	entries []logger.LogEntry
}

func (f *fakeLogs) GetLogs(level string, limit, offset int) ([]logger.LogEntry, error) {
	var out []logger.LogEntry
	for _, e := range f.entries {
		if level == "" || e.Level == level {
			out = append(out, e)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	return out[offset:min(offset+limit, len(out))], nil
}

func (f *fakeLogs) GetLogById(id string) (*logger.LogEntry, error) {
	for _, e := range f.entries {
		if e.Id == id {
			return &e, nil
		}
	}
	return nil, errors.New("log not found")
}

type harness struct {
	uowFactory unitofwork.RepositoryFactory
	index      *ragtest.FlakyIndex
	chat       *ragtest.FakeLLM
	events     *events.Recorder
	queue      *fakeQueue
	logs       *fakeLogs

	auth    IAuthService
	docs    IDocumentService
	query   IQueryService
	admin   IAdminService
	cleanup *indexCleanupConsumer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := dbtest.NewSQLite(t, model.All()...)
	base, err := vectorindex.NewChromemIndex("", "documents", embeddingtest.NewHashEmbedder(256), 4)
	require.NoError(t, err)

	h := &harness{
		uowFactory: unitofwork.NewRepositoryFactory(db),
		index:      &ragtest.FlakyIndex{Index: base},
		chat:       &ragtest.FakeLLM{Reply: "ZEBRA-42 [1]"},
		events:     &events.Recorder{},
		queue:      &fakeQueue{},
		logs:       &fakeLogs{},
	}
	log := logger.NewNopLogger()
	store := storage.NewLocalStorage(t.TempDir())
	registry := NewDocumentRegistry(h.uowFactory)
	purger := rag.NewPurger(h.index, log, 5*time.Second)

	ingestor := rag.NewIngestor(store, registry, loader.New(), chunker.New(), h.index, h.events, log,
		rag.IngestorConfig{MaxFileBytes: 1 << 20, MaxFiles: 10, UpstreamTimeout: 5 * time.Second})
	retriever := rag.NewRetriever(h.index, h.chat, registry, log, rag.RetrieverConfig{
		DefaultTopK:        4,
		DefaultTemperature: 0.7,
		UpstreamTimeout:    5 * time.Second,
	})
	deleter := NewDocumentDeleter(h.uowFactory, purger, store, h.queue, h.events, log)

	h.auth = NewAuthService(h.uowFactory, h.events, log, config.AuthConfig{
		JwtSecret:       testSecret,
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	h.docs = NewDocumentService(h.uowFactory, ingestor, deleter)
	h.query = NewQueryService(retriever)
	h.admin = NewAdminService(h.uowFactory, deleter, purger, h.logs, log)
	h.cleanup = NewIndexCleanupConsumer(nil, h.queue, IndexCleanupTopic, h.uowFactory, purger, log, 0).(*indexCleanupConsumer)
	return h
}

func (h *harness) upload(t *testing.T, owner uuid.UUID, name, text string) uuid.UUID {
	t.Helper()
	res, err := h.docs.Upload(context.Background(), owner, "", []rag.Upload{ragtest.FileUpload(name, []byte(text))})
	require.NoError(t, err)
	require.Len(t, res.DocumentIds, 1)
	return res.DocumentIds[0]
}

func (h *harness) indexEntries(t *testing.T, documentId uuid.UUID) []string {
	t.Helper()
	ids, err := h.index.Index.Get(context.Background(), vectorindex.Filter{vectorindex.MetaDocumentID: documentId.String()})
	require.NoError(t, err)
	return ids
}

func requireKind(t *testing.T, err error, kind apperror.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperror.KindOf(err), "unexpected error: %v", err)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	reg, err := h.auth.Register(ctx, &dto.RegisterRequest{
		Username:  "alice",
		Email:     "Alice@Example.com",
		Password:  "s3cret-pass",
		Password2: "s3cret-pass",
		FirstName: "Alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", reg.Username)
	assert.Equal(t, "alice@example.com", reg.Email)
	assert.Equal(t, []string{events.UserRegistered}, h.events.Types())

	tokens, err := h.auth.Token(ctx, &dto.TokenRequest{Username: "alice", Password: "s3cret-pass"}, "127.0.0.1", "test")
	require.NoError(t, err)
	require.NotEmpty(t, tokens.Refresh)

	parsed, err := jwt.Parse(tokens.Access, func(*jwt.Token) (interface{}, error) { return []byte(testSecret), nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, reg.Id.String(), claims["user_id"])
	assert.Equal(t, "user", claims["role"])

	refreshed, err := h.auth.Refresh(ctx, &dto.RefreshRequest{Refresh: tokens.Refresh})
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.Access)

	me, err := h.auth.Me(ctx, reg.Id)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, "Alice", me.FirstName)
}

func TestRegisterRejections(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.auth.Register(ctx, &dto.RegisterRequest{Username: "bob", Email: "bob@example.com", Password: "password1", Password2: "password1"})
	require.NoError(t, err)

	tests := []struct {
		name string
		req  dto.RegisterRequest
		kind apperror.Kind
	}{
		{"passwords differ", dto.RegisterRequest{Username: "carol", Email: "carol@example.com", Password: "password1", Password2: "password2"}, apperror.KindValidation},
		{"username taken", dto.RegisterRequest{Username: "bob", Email: "other@example.com", Password: "password1", Password2: "password1"}, apperror.KindConflict},
		{"email taken", dto.RegisterRequest{Username: "robert", Email: "BOB@example.com", Password: "password1", Password2: "password1"}, apperror.KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.auth.Register(ctx, &tt.req)
			requireKind(t, err, tt.kind)
		})
	}
}

func TestTokenRejections(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.auth.Register(ctx, &dto.RegisterRequest{Username: "dave", Email: "dave@example.com", Password: "password1", Password2: "password1"})
	require.NoError(t, err)

	_, err = h.auth.Token(ctx, &dto.TokenRequest{Username: "dave", Password: "wrong-password"}, "", "")
	requireKind(t, err, apperror.KindUnauthorized)

	_, err = h.auth.Token(ctx, &dto.TokenRequest{Username: "nobody", Password: "password1"}, "", "")
	requireKind(t, err, apperror.KindUnauthorized)

	_, err = h.auth.Refresh(ctx, &dto.RefreshRequest{Refresh: uuid.NewString()})
	requireKind(t, err, apperror.KindUnauthorized)

	_, err = h.auth.Me(ctx, uuid.New())
	requireKind(t, err, apperror.KindNotFound)
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner, stranger := uuid.New(), uuid.New()

	docId := h.upload(t, owner, "notes.txt", "The animal token that appears here is ZEBRA-42.")

	list, err := h.docs.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "notes", list[0].Title)
	assert.Equal(t, "notes.txt", list[0].FileName)
	assert.True(t, strings.HasSuffix(list[0].FileSizeHuman, " B"))

	others, err := h.docs.List(ctx, stranger)
	require.NoError(t, err)
	assert.Empty(t, others)

	_, err = h.docs.Get(ctx, stranger, docId)
	requireKind(t, err, apperror.KindNotFound)
	_, err = h.docs.Delete(ctx, stranger, docId)
	requireKind(t, err, apperror.KindNotFound)

	detail, err := h.docs.Get(ctx, owner, docId)
	require.NoError(t, err)
	assert.Equal(t, docId, detail.Id)

	uow := h.uowFactory.NewUnitOfWork(ctx)
	row, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: docId})
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.FileExists(t, row.FilePath)
	require.NotEmpty(t, h.indexEntries(t, docId))

	res, err := h.docs.Delete(ctx, owner, docId)
	require.NoError(t, err)
	assert.False(t, res.CleanupPending)
	assert.Positive(t, res.IndexEntries)

	assert.Empty(t, h.indexEntries(t, docId))
	assert.NoFileExists(t, row.FilePath)
	list, err = h.docs.List(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, []string{events.DocumentUploaded, events.DocumentDeleted}, h.events.Types())

	_, err = h.docs.Delete(ctx, owner, docId)
	requireKind(t, err, apperror.KindNotFound)
}

func TestDeleteQueuesCleanupWhenIndexIsDown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := uuid.New()
	docId := h.upload(t, owner, "budget.txt", "budget figures for the launch date")

	h.index.FailGet = true
	res, err := h.docs.Delete(ctx, owner, docId)
	require.NoError(t, err, "index cleanup failure must not fail the delete")
	assert.True(t, res.CleanupPending)

	items := h.queue.Items()
	require.Len(t, items, 1)
	var msg dto.IndexCleanupMessage
	require.NoError(t, json.Unmarshal(items[0].payload, &msg))
	assert.Equal(t, docId, msg.DocumentId)

	// the leftover chunks are hidden from queries by the registry cross-check
	h.index.FailGet = false
	require.NotEmpty(t, h.indexEntries(t, docId))
	out, err := h.query.Query(ctx, owner, &dto.QueryRequest{Query: "budget", Generate: boolPtr(false)})
	require.NoError(t, err)
	assert.Empty(t, out.Results)

	removed, err := h.cleanup.Sweep(ctx)
	require.NoError(t, err)
	assert.Positive(t, removed)
	assert.Empty(t, h.indexEntries(t, docId))
}

func TestUploadIndexFailureLeavesNoActiveRows(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := uuid.New()

	h.index.FailAdd = true
	_, err := h.docs.Upload(ctx, owner, "", []rag.Upload{ragtest.FileUpload("a.txt", []byte("apples"))})
	requireKind(t, err, apperror.KindUpstream)

	uow := h.uowFactory.NewUnitOfWork(ctx)
	active, err := uow.DocumentRepository().Count(ctx, specification.UserOwnedBy{UserID: owner}, specification.ActiveDocuments{})
	require.NoError(t, err)
	assert.Zero(t, active)
	all, err := uow.DocumentRepository().Count(ctx, specification.UserOwnedBy{UserID: owner})
	require.NoError(t, err)
	assert.Equal(t, int64(1), all)
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := uuid.New()
	h.upload(t, owner, "notes.txt", "The animal token that appears here is ZEBRA-42.")

	plain, err := h.query.Query(ctx, owner, &dto.QueryRequest{Query: "animal token", Generate: boolPtr(false)})
	require.NoError(t, err)
	require.Len(t, plain.Results, 1)
	assert.Contains(t, plain.Results[0].Content, "ZEBRA-42")
	assert.Nil(t, plain.Answer)
	assert.Nil(t, plain.Citations)

	answered, err := h.query.Query(ctx, owner, &dto.QueryRequest{Query: "animal token"})
	require.NoError(t, err)
	require.NotNil(t, answered.Answer)
	assert.Equal(t, "ZEBRA-42 [1]", *answered.Answer)
	require.Len(t, answered.Citations, 1)
	assert.Equal(t, 1, answered.Citations[0].Index)
	require.NotNil(t, answered.Citations[0].Source)
	assert.Equal(t, "notes.txt", *answered.Citations[0].Source)
	assert.Equal(t, answered.Results[0].Score, answered.Citations[0].Score)

	_, err = h.query.Query(ctx, owner, &dto.QueryRequest{Query: "   "})
	requireKind(t, err, apperror.KindValidation)
}

func TestAdminDocuments(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice, bob, admin := uuid.New(), uuid.New(), uuid.New()
	aliceDoc := h.upload(t, alice, "alice.txt", "apples")
	bobDoc := h.upload(t, bob, "bob.txt", "budget")

	page, err := h.admin.ListDocuments(ctx, dto.AdminDocumentFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.Limit)

	page, err = h.admin.ListDocuments(ctx, dto.AdminDocumentFilter{UserId: &bob})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, bobDoc, page.Items[0].Id)
	assert.Equal(t, bob, page.Items[0].UserId)
	require.NotNil(t, page.Items[0].CollectionRef)

	_, err = h.admin.DeleteDocument(ctx, admin, bobDoc)
	require.NoError(t, err)
	_, err = h.admin.DeleteDocument(ctx, admin, bobDoc)
	requireKind(t, err, apperror.KindNotFound)

	page, err = h.admin.ListDocuments(ctx, dto.AdminDocumentFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	page, err = h.admin.ListDocuments(ctx, dto.AdminDocumentFilter{IncludeInactive: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	purged, err := h.admin.PurgeIndex(ctx, aliceDoc)
	require.NoError(t, err)
	assert.Positive(t, purged.Removed)
	assert.Empty(t, h.indexEntries(t, aliceDoc))

	list, err := h.docs.List(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, list, 1, "purging the index leaves the registry row alone")

	h.index.FailGet = true
	_, err = h.admin.PurgeIndex(ctx, aliceDoc)
	requireKind(t, err, apperror.KindUpstream)
}

func TestAdminLogs(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.logs.entries = []logger.LogEntry{
		{Id: "b", Level: "ERROR", Module: "INGEST", Message: "boom", Timestamp: "2025-01-10T09:00:00.000Z", Details: map[string]interface{}{"file": "a.txt"}},
		{Id: "a", Level: "INFO", Module: "AUTH", Message: "ok", Timestamp: "2025-01-10T08:00:00.000Z"},
	}

	logs, err := h.admin.GetLogs(ctx, "ERROR", 1, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "INGEST", logs[0].Module)
	assert.Equal(t, time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC), logs[0].CreatedAt.UTC())

	detail, err := h.admin.GetLogDetail(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", detail.Details["file"])

	_, err = h.admin.GetLogDetail(ctx, "missing")
	requireKind(t, err, apperror.KindNotFound)
}

func cleanupMessage(t *testing.T, documentId uuid.UUID, attempts int) *message.Message {
	t.Helper()
	payload, err := json.Marshal(dto.IndexCleanupMessage{DocumentId: documentId})
	require.NoError(t, err)
	msg := message.NewMessage(uuid.NewString(), payload)
	if attempts > 0 {
		msg.Metadata.Set(metadataAttempts, strconv.Itoa(attempts))
	}
	return msg
}

func acked(msg *message.Message) bool {
	select {
	case <-msg.Acked():
		return true
	default:
		return false
	}
}

func TestCleanupConsumer(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	docId := h.upload(t, uuid.New(), "notes.txt", "apples")

	t.Run("success purges and acks", func(t *testing.T) {
		msg := cleanupMessage(t, docId, 0)
		h.cleanup.processMessage(ctx, msg)
		assert.True(t, acked(msg))
		assert.Empty(t, h.indexEntries(t, docId))
		assert.Empty(t, h.queue.Items())
	})

	t.Run("malformed payload is dropped", func(t *testing.T) {
		msg := message.NewMessage(uuid.NewString(), []byte("not json"))
		h.cleanup.processMessage(ctx, msg)
		assert.True(t, acked(msg))
		assert.Empty(t, h.queue.Items())
	})

	t.Run("failure is requeued with the next attempt", func(t *testing.T) {
		h.index.FailGet = true
		defer func() { h.index.FailGet = false }()

		msg := cleanupMessage(t, docId, 2)
		h.cleanup.processMessage(ctx, msg)
		assert.True(t, acked(msg))
		require.Eventually(t, func() bool { return len(h.queue.Items()) == 1 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, 3, h.queue.Items()[0].attempt)
	})

	t.Run("gives up after the last attempt", func(t *testing.T) {
		h.index.FailGet = true
		defer func() { h.index.FailGet = false }()

		before := len(h.queue.Items())
		msg := cleanupMessage(t, docId, maxCleanupAttempts-1)
		h.cleanup.processMessage(ctx, msg)
		assert.True(t, acked(msg))
		time.Sleep(20 * time.Millisecond)
		assert.Len(t, h.queue.Items(), before)
	})
}

func boolPtr(v bool) *bool { return &v }
