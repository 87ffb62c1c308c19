package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"rag-chatbot-be/internal/config"
	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/model"
	"rag-chatbot-be/internal/repository/specification"
	"rag-chatbot-be/internal/repository/unitofwork"
	"rag-chatbot-be/pkg/database"
	"rag-chatbot-be/pkg/embedding/embeddingtest"
	"rag-chatbot-be/pkg/vectorindex"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testDimension = 256

func connect(t *testing.T) *gorm.DB {
	t.Helper()
	if err := godotenv.Load("../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	db, err := database.NewGormDBFromDSN(dsn, false)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

func TestRegistryOnPostgres(t *testing.T) {
	db := connect(t)
	ctx := context.Background()
	uow := unitofwork.NewRepositoryFactory(db).NewUnitOfWork(ctx)

	owner := uuid.New()
	now := time.Now().UTC()
	doc := &entity.Document{
		Id:           uuid.New(),
		UserId:       owner,
		Title:        "integration",
		FileName:     "integration.txt",
		FilePath:     "/tmp/integration.txt",
		FileSize:     42,
		FileType:     "text/plain; charset=utf-8",
		UploadDate:   now,
		LastModified: now,
		IsActive:     true,
	}
	require.NoError(t, uow.DocumentRepository().Create(ctx, doc))
	t.Cleanup(func() {
		db.Unscoped().Where("user_id = ?", owner).Delete(&model.Document{})
	})

	ids, err := uow.DocumentRepository().ActiveIDsByUser(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{doc.Id}, ids)

	n, err := uow.DocumentRepository().SoftDelete(ctx, now.Add(time.Second), doc.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	live, err := uow.DocumentRepository().Count(ctx, specification.UserOwnedBy{UserID: owner}, specification.ActiveDocuments{})
	require.NoError(t, err)
	assert.Zero(t, live)
}

func TestPgVectorIndex(t *testing.T) {
	db := connect(t)
	ctx := context.Background()
	require.NoError(t, vectorindex.Migrate(db, testDimension))

	collection := "integration-" + uuid.NewString()[:8]
	index := vectorindex.NewPgVectorIndex(db, embeddingtest.NewHashEmbedder(testDimension), collection, 2)
	owner := uuid.NewString()
	docId := uuid.NewString()

	added, err := index.Add(ctx, []vectorindex.Chunk{
		{ID: uuid.NewString(), Content: "ZEBRA-42 is the launch code", Metadata: map[string]string{
			vectorindex.MetaUserID: owner, vectorindex.MetaDocumentID: docId,
		}},
		{ID: uuid.NewString(), Content: "unrelated gardening notes", Metadata: map[string]string{
			vectorindex.MetaUserID: owner, vectorindex.MetaDocumentID: docId,
		}},
	})
	require.NoError(t, err)
	require.Len(t, added, 2)
	t.Cleanup(func() { _ = index.Delete(ctx, added) })

	hits, err := index.SimilaritySearchWithDistance(ctx, "ZEBRA-42 launch code", 5, vectorindex.Filter{vectorindex.MetaUserID: owner})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Contains(t, hits[0].Content, "ZEBRA-42")

	foreign, err := index.SimilaritySearchWithDistance(ctx, "ZEBRA-42", 5, vectorindex.Filter{vectorindex.MetaUserID: uuid.NewString()})
	require.NoError(t, err)
	assert.Empty(t, foreign)

	ids, err := index.Get(ctx, vectorindex.Filter{vectorindex.MetaDocumentID: docId})
	require.NoError(t, err)
	assert.ElementsMatch(t, added, ids)

	require.NoError(t, index.Delete(ctx, ids))
	ids, err = index.Get(ctx, vectorindex.Filter{vectorindex.MetaDocumentID: docId})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestConfigDefaults(t *testing.T) {
	cfg := config.Load()
	assert.Positive(t, cfg.VectorStore.Dimension)
	assert.Positive(t, cfg.Storage.MaxFiles)
}
