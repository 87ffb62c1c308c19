package implementation_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/model"
	"rag-chatbot-be/internal/repository/implementation"
	"rag-chatbot-be/internal/repository/specification"
	"rag-chatbot-be/internal/repository/unitofwork"
	"rag-chatbot-be/pkg/database/dbtest"
)

var base = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

func newDB(t *testing.T) *gorm.DB {
	return dbtest.NewSQLite(t, model.All()...)
}

func newDocument(owner uuid.UUID, title string, uploaded time.Time) *entity.Document {
	ref := owner.String() + "-" + title
	return &entity.Document{
		Id:            uuid.New(),
		UserId:        owner,
		Title:         title,
		FileName:      title + ".txt",
		FilePath:      "/media/uploads/" + owner.String() + "/" + title + ".txt",
		FileSize:      1536,
		FileType:      "text/plain; charset=utf-8",
		CollectionRef: &ref,
		UploadDate:    uploaded,
		LastModified:  uploaded,
		IsActive:      true,
	}
}

func TestDocumentRepositoryCreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := implementation.NewDocumentRepository(newDB(t))
	owner := uuid.New()

	doc := newDocument(owner, "notes", base)
	require.NoError(t, repo.Create(ctx, doc))

	found, err := repo.FindOne(ctx,
		specification.ByID{ID: doc.Id},
		specification.UserOwnedBy{UserID: owner},
		specification.ActiveDocuments{},
	)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "notes", found.Title)
	assert.Equal(t, int64(1536), found.FileSize)
	assert.Equal(t, "1.5 KB", found.FileSizeHuman())
	require.NotNil(t, found.CollectionRef)
	assert.Equal(t, *doc.CollectionRef, *found.CollectionRef)
	assert.True(t, found.IsActive)

	missing, err := repo.FindOne(ctx, specification.ByID{ID: doc.Id}, specification.UserOwnedBy{UserID: uuid.New()})
	require.NoError(t, err)
	assert.Nil(t, missing)

	byRef, err := repo.FindOne(ctx, specification.ByCollectionRef{Ref: *doc.CollectionRef})
	require.NoError(t, err)
	require.NotNil(t, byRef)
	assert.Equal(t, doc.Id, byRef.Id)
}

func TestDocumentRepositoryListsRecentFirst(t *testing.T) {
	ctx := context.Background()
	repo := implementation.NewDocumentRepository(newDB(t))
	owner, other := uuid.New(), uuid.New()

	for i, title := range []string{"first", "second", "third"} {
		require.NoError(t, repo.Create(ctx, newDocument(owner, title, base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, repo.Create(ctx, newDocument(other, "foreign", base.Add(time.Hour))))

	docs, err := repo.FindAll(ctx,
		specification.UserOwnedBy{UserID: owner},
		specification.ActiveDocuments{},
		specification.RecentDocumentsFirst{},
	)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, []string{"third", "second", "first"}, []string{docs[0].Title, docs[1].Title, docs[2].Title})

	page, err := repo.FindAll(ctx, specification.RecentDocumentsFirst{}, specification.Pagination{Limit: 2, Offset: 0})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "foreign", page[0].Title)

	count, err := repo.Count(ctx, specification.UserOwnedBy{UserID: owner})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestDocumentRepositorySoftDelete(t *testing.T) {
	ctx := context.Background()
	repo := implementation.NewDocumentRepository(newDB(t))
	owner := uuid.New()

	keep := newDocument(owner, "keep", base)
	drop := newDocument(owner, "drop", base.Add(time.Minute))
	require.NoError(t, repo.Create(ctx, keep))
	require.NoError(t, repo.Create(ctx, drop))

	deletedAt := base.Add(2 * time.Hour)
	n, err := repo.SoftDelete(ctx, deletedAt, drop.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.SoftDelete(ctx, deletedAt.Add(time.Hour), drop.Id)
	require.NoError(t, err)
	assert.Zero(t, n, "already inactive rows are left untouched")

	ids, err := repo.ActiveIDsByUser(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{keep.Id}, ids)

	row, err := repo.FindOne(ctx, specification.ByID{ID: drop.Id})
	require.NoError(t, err)
	require.NotNil(t, row, "rows are never physically removed")
	assert.False(t, row.IsActive)
	assert.True(t, deletedAt.Equal(row.LastModified))

	inactive, err := repo.InactiveIDs(ctx, base.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{drop.Id}, inactive)

	inactive, err = repo.InactiveIDs(ctx, base.Add(3*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, inactive)

	n, err = repo.SoftDelete(ctx, deletedAt)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDocumentRepositoryByIDsAndOrder(t *testing.T) {
	ctx := context.Background()
	repo := implementation.NewDocumentRepository(newDB(t))
	owner := uuid.New()

	docs := make([]*entity.Document, 3)
	for i, title := range []string{"a", "b", "c"} {
		docs[i] = newDocument(owner, title, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Create(ctx, docs[i]))
	}

	found, err := repo.FindAll(ctx,
		specification.ByIDs{IDs: []uuid.UUID{docs[0].Id, docs[2].Id}},
		specification.OrderBy{Field: "upload_date", Desc: true},
	)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, []string{"c", "a"}, []string{found[0].Title, found[1].Title})

	// Deactivated later first; InactiveIDs still returns oldest change first.
	_, err = repo.SoftDelete(ctx, base.Add(3*time.Hour), docs[2].Id)
	require.NoError(t, err)
	_, err = repo.SoftDelete(ctx, base.Add(2*time.Hour), docs[0].Id, docs[1].Id)
	require.NoError(t, err)

	ids, err := repo.ActiveIDsByUser(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, ids)

	inactive, err := repo.InactiveIDs(ctx, base, 10)
	require.NoError(t, err)
	require.Len(t, inactive, 3)
	assert.ElementsMatch(t, []uuid.UUID{docs[0].Id, docs[1].Id}, inactive[:2])
	assert.Equal(t, docs[2].Id, inactive[2])

	inactive, err = repo.InactiveIDs(ctx, base, 1)
	require.NoError(t, err)
	assert.Len(t, inactive, 1)
}

func newUser(username, email string) *entity.User {
	return &entity.User{
		Id:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: "hash",
		Role:         entity.UserRoleUser,
		IsActive:     true,
	}
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := implementation.NewUserRepository(newDB(t))

	alice := newUser("alice", "alice@example.com")
	require.NoError(t, repo.Create(ctx, alice))
	assert.False(t, alice.CreatedAt.IsZero())

	found, err := repo.FindOne(ctx, specification.ByUsername{Username: "alice"})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, alice.Id, found.Id)
	assert.Equal(t, entity.UserRoleUser, found.Role)

	clash, err := repo.FindOne(ctx, specification.UsernameOrEmail{Username: "someone", Email: "alice@example.com"})
	require.NoError(t, err)
	assert.NotNil(t, clash)

	none, err := repo.FindOne(ctx, specification.ByEmail{Email: "nobody@example.com"})
	require.NoError(t, err)
	assert.Nil(t, none)

	assert.Error(t, repo.Create(ctx, newUser("alice", "other@example.com")), "username is unique")

	found.Role = entity.UserRoleAdmin
	require.NoError(t, repo.Update(ctx, found))
	admins, err := repo.FindAll(ctx, specification.Filter("role", "admin"))
	require.NoError(t, err)
	assert.Len(t, admins, 1)

	count, err := repo.Count(ctx, specification.ActiveUsers{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRefreshTokens(t *testing.T) {
	ctx := context.Background()
	repo := implementation.NewUserRepository(newDB(t))
	user := newUser("bob", "bob@example.com")
	require.NoError(t, repo.Create(ctx, user))

	token := &entity.UserRefreshToken{
		Id:        uuid.New(),
		UserId:    user.Id,
		TokenHash: "abc123",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.CreateRefreshToken(ctx, token))

	found, err := repo.FindRefreshToken(ctx, specification.ByTokenHash{Hash: "abc123"})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.Usable(time.Now()))

	require.NoError(t, repo.RevokeRefreshToken(ctx, "abc123"))
	found, err = repo.FindRefreshToken(ctx, specification.ByTokenHash{Hash: "abc123"})
	require.NoError(t, err)
	assert.True(t, found.Revoked)

	missing, err := repo.FindRefreshToken(ctx, specification.ByTokenHash{Hash: "nope"})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUnitOfWork(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	factory := unitofwork.NewRepositoryFactory(db)
	owner := uuid.New()

	uow := factory.NewUnitOfWork(ctx)
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.DocumentRepository().Create(ctx, newDocument(owner, "rolled-back", base)))
	require.NoError(t, uow.Rollback())

	uow = factory.NewUnitOfWork(ctx)
	require.NoError(t, uow.Begin(ctx))
	assert.Error(t, uow.Begin(ctx))
	require.NoError(t, uow.DocumentRepository().Create(ctx, newDocument(owner, "committed", base)))
	require.NoError(t, uow.Commit())
	require.NoError(t, uow.Rollback(), "rollback after commit is a no-op")
	assert.Error(t, uow.Commit())

	docs, err := implementation.NewDocumentRepository(db).FindAll(ctx, specification.UserOwnedBy{UserID: owner})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "committed", docs[0].Title)
}
