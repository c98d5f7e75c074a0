package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/skill-engine/internal/model"
)

func newMockPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func skillColumns() []string {
	return []string{"id", "name", "standard_code", "domain", "priority", "dsl_version", "status", "dsl", "created_at", "updated_at"}
}

func TestPostgresStore_Migrate(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS skills").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, st.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSkill(t *testing.T) {
	st, mock := newMockPostgres(t)

	dslJSON, err := json.Marshal(testDSL())
	require.NoError(t, err)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM skills WHERE id = \\$1 OR name = \\$1").
		WithArgs("pvc-pipe").
		WillReturnRows(pgxmock.NewRows(skillColumns()).
			AddRow("skill-1", "pvc-pipe", "GB/T 10002.1", "pipe", 10, "1.0", "active", dslJSON, now, now))

	got, err := st.GetSkill(context.Background(), "pvc-pipe")
	require.NoError(t, err)
	assert.Equal(t, "skill-1", got.ID)
	assert.Equal(t, model.SkillActive, got.Status)

	// The stored payload comes back compiled.
	require.NotNil(t, got.DSL)
	require.NotEmpty(t, got.DSL.Attributes[0].CompiledPatterns())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSkill_NotFound(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT (.+) FROM skills").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := st.GetSkill(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "skill not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateSkillStatus_NotFound(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectExec("UPDATE skills SET status").
		WithArgs("deprecated", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := st.UpdateSkillStatus(context.Background(), "missing", model.SkillDeprecated)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteSkill(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectExec("DELETE FROM skills").
		WithArgs("skill-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, st.DeleteSkill(context.Background(), "skill-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountActiveCases(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM cases").
		WithArgs("ds-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	count, err := st.CountActiveCases(context.Background(), "ds-1")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun(t *testing.T) {
	st, mock := newMockPostgres(t)

	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO runs").
		WithArgs("run-1", "RUN_X", "ds-1", "smoke", pgxmock.AnyArg(), "pending", 0, 0, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run := &model.Run{
		ID:        "run-1",
		Code:      "RUN_X",
		DatasetID: "ds-1",
		Name:      "smoke",
		Status:    model.RunPending,
		CreatedAt: now,
	}
	require.NoError(t, st.CreateRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT (.+) FROM runs").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := st.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListResults_StatusFilter(t *testing.T) {
	st, mock := newMockPostgres(t)

	columns := []string{"id", "run_id", "case_id", "actual_skill_id", "actual_attributes", "actual_category",
		"actual_confidence", "duration_ms", "skill_match", "attribute_scores", "overall_score", "status",
		"error_detail", "created_at"}

	mock.ExpectQuery("SELECT (.+) FROM results WHERE run_id = \\$1 AND status = ANY\\(\\$2\\)").
		WithArgs("run-1", []string{"failed", "error"}, 1000).
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("res-2", "run-1", "case-2", nil, nil, nil, nil, int64(0), nil, nil, 0.0, "error", "parse blew up", time.Now().UTC()))

	results, err := st.ListResults(context.Background(), "run-1", ResultFilter{
		Statuses: []model.ResultStatus{model.ResultFailed, model.ResultError},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.ResultError, results[0].Status)
	assert.Equal(t, "parse blew up", results[0].ErrorDetail)
	assert.Nil(t, results[0].SkillMatch)
	assert.Nil(t, results[0].ActualConfidence)
	assert.NoError(t, mock.ExpectationsWereMet())
}
