package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ideaforge-api/internal/domain/entity"
	"ideaforge-api/internal/domain/repository"
)

// sqlRecorder 记录 dry-run 模式下生成的 SQL
type sqlRecorder struct {
	mu  sync.Mutex
	sql []string
}

func (r *sqlRecorder) LogMode(logger.LogLevel) logger.Interface           { return r }
func (r *sqlRecorder) Info(context.Context, string, ...interface{})  {}
func (r *sqlRecorder) Warn(context.Context, string, ...interface{})  {}
func (r *sqlRecorder) Error(context.Context, string, ...interface{}) {}

func (r *sqlRecorder) Trace(_ context.Context, _ time.Time, fc func() (string, int64), _ error) {
	sql, _ := fc()
	r.mu.Lock()
	r.sql = append(r.sql, sql)
	r.mu.Unlock()
}

func (r *sqlRecorder) last(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.sql)
	return r.sql[len(r.sql)-1]
}

func newDryRunClient(t *testing.T) (*Client, *sqlRecorder) {
	t.Helper()
	rec := &sqlRecorder{}
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost port=5432 user=test dbname=test sslmode=disable",
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               rec,
	})
	require.NoError(t, err)
	return &Client{db: db}, rec
}

func TestGeneratedProjectRepository_UpsertKeepsRowIdentity(t *testing.T) {
	client, rec := newDryRunClient(t)
	repo := NewGeneratedProjectRepository(client)

	project := entity.NewGeneratedProject("br-1", "ai-recipe-finder", "AI Recipe Finder", "user-1", entity.DefaultGenerationOptions())
	project.CodeFiles = nil
	require.NoError(t, repo.Upsert(context.Background(), project))

	assert.NotEmpty(t, project.ID)
	assert.NotNil(t, project.CodeFiles)

	sql := rec.last(t)
	assert.Contains(t, sql, `INSERT INTO "generated_projects"`)
	assert.Contains(t, sql, `ON CONFLICT ("project_slug") DO UPDATE SET`)
	assert.Contains(t, sql, `"status"="excluded"."status"`)
	assert.Contains(t, sql, `"code_files"="excluded"."code_files"`)
	assert.NotContains(t, sql, `"id"="excluded"."id"`)
	assert.NotContains(t, sql, `"created_at"="excluded"."created_at"`)
	assert.Contains(t, sql, `RETURNING "id","created_at"`)
}

func TestGeneratedProjectRepository_UpdateStatusLeavesDocuments(t *testing.T) {
	client, rec := newDryRunClient(t)
	repo := NewGeneratedProjectRepository(client)

	require.NoError(t, repo.UpdateStatus(context.Background(), "ai-recipe-finder", entity.GenerationStatusFailed, "boom"))

	sql := rec.last(t)
	assert.Contains(t, sql, `UPDATE "generated_projects" SET`)
	assert.Contains(t, sql, `"status"='failed'`)
	assert.Contains(t, sql, `"error_message"='boom'`)
	assert.NotContains(t, sql, "market_research")
	assert.Contains(t, sql, `project_slug = 'ai-recipe-finder'`)
}

func TestBuildRequestRepository_EmptyURLsWriteNull(t *testing.T) {
	client, rec := newDryRunClient(t)
	repo := NewBuildRequestRepository(client)

	require.NoError(t, repo.UpdateGenerationResult(context.Background(), "br-1", entity.GenerationStatusCompleted, "", "https://github.com/x/y"))

	sql := rec.last(t)
	assert.Contains(t, sql, `"generation_status"='completed'`)
	assert.Contains(t, sql, `"preview_url"=NULL`)
	assert.Contains(t, sql, `"github_url"='https://github.com/x/y'`)
}

func TestProfileRepository_IncrementIsAtomicExpression(t *testing.T) {
	client, rec := newDryRunClient(t)
	repo := NewProfileRepository(client)

	_, err := repo.IncrementExtraSubmissions(context.Background(), "user-1", 5)
	require.NoError(t, err)

	assert.Contains(t, rec.last(t), `"extra_submissions"=extra_submissions + 5`)
}

func TestPaymentTransactionRepository_CreateIgnoresConflicts(t *testing.T) {
	client, rec := newDryRunClient(t)
	repo := NewPaymentTransactionRepository(client)

	txn := &entity.PaymentTransaction{UserID: "user-1", ProviderSessionID: "cs_1", PackSize: 5}
	err := repo.Create(context.Background(), txn)

	// dry-run 不落库，受影响行数为 0，与冲突时的返回一致
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	assert.NotEmpty(t, txn.ID)
	assert.Contains(t, rec.last(t), `ON CONFLICT ("provider_session_id") DO NOTHING`)
}

func TestGetDB_PrefersTransactionFromContext(t *testing.T) {
	client, _ := newDryRunClient(t)
	tx := client.db.Session(&gorm.Session{})

	assert.Nil(t, getTxFromContext(context.Background()))

	ctx := context.WithValue(context.Background(), repository.TxKey{}, tx)
	assert.Same(t, tx, getTxFromContext(ctx))
	assert.NotNil(t, getDB(ctx, client.db))
}
