package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/skill-engine/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it,
// which is what the postgres tests run against.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS skills (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name          TEXT NOT NULL UNIQUE,
	standard_code TEXT NOT NULL DEFAULT '',
	domain        TEXT NOT NULL DEFAULT '',
	priority      INTEGER NOT NULL DEFAULT 0,
	dsl_version   TEXT NOT NULL DEFAULT '1.0',
	status        TEXT NOT NULL DEFAULT 'draft',
	dsl           JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS execution_log (
	correlation_id       TEXT PRIMARY KEY,
	input_text           TEXT NOT NULL,
	matched_skill_id     TEXT,
	stages               JSONB,
	result               JSONB,
	aggregate_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	duration_ms          BIGINT NOT NULL DEFAULT 0,
	outcome              TEXT NOT NULL,
	error_detail         TEXT,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS datasets (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	code             TEXT NOT NULL UNIQUE,
	name             TEXT NOT NULL,
	skill_id         TEXT,
	source_type      TEXT NOT NULL DEFAULT 'generated',
	difficulty_stats JSONB,
	total_cases      INTEGER NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'draft',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS cases (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	dataset_id          TEXT NOT NULL REFERENCES datasets(id),
	code                TEXT NOT NULL,
	input_text          TEXT NOT NULL,
	expected_skill_id   TEXT,
	expected_attributes JSONB NOT NULL,
	expected_category   JSONB,
	difficulty          TEXT NOT NULL,
	source_type         TEXT NOT NULL,
	source_ref          JSONB,
	active              BOOLEAN NOT NULL DEFAULT true,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	code            TEXT NOT NULL UNIQUE,
	dataset_id      TEXT NOT NULL REFERENCES datasets(id),
	name            TEXT NOT NULL,
	config          JSONB NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	total_cases     INTEGER NOT NULL DEFAULT 0,
	completed_cases INTEGER NOT NULL DEFAULT 0,
	metrics         JSONB,
	error_detail    TEXT,
	started_at      TIMESTAMPTZ,
	completed_at    TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS results (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id            TEXT NOT NULL REFERENCES runs(id),
	case_id           TEXT NOT NULL REFERENCES cases(id),
	actual_skill_id   TEXT,
	actual_attributes JSONB,
	actual_category   JSONB,
	actual_confidence DOUBLE PRECISION,
	duration_ms       BIGINT NOT NULL DEFAULT 0,
	skill_match       BOOLEAN,
	attribute_scores  JSONB,
	overall_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
	status            TEXT NOT NULL,
	error_detail      TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_skills_status ON skills(status);
CREATE INDEX IF NOT EXISTS idx_skills_domain ON skills(domain);
CREATE INDEX IF NOT EXISTS idx_execution_log_created_at ON execution_log(created_at);
CREATE INDEX IF NOT EXISTS idx_cases_dataset_id ON cases(dataset_id);
CREATE INDEX IF NOT EXISTS idx_runs_dataset_id ON runs(dataset_id);
CREATE INDEX IF NOT EXISTS idx_results_run_id ON results(run_id);
CREATE INDEX IF NOT EXISTS idx_results_status ON results(run_id, status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// Skills

func (s *PostgresStore) PutSkill(ctx context.Context, skill *model.Skill) error {
	dslJSON, err := json.Marshal(skill.DSL)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal dsl")
	}
	now := time.Now().UTC()
	if skill.CreatedAt.IsZero() {
		skill.CreatedAt = now
	}
	skill.UpdatedAt = now

	_, err = s.pool.Exec(ctx,
		`INSERT INTO skills (id, name, standard_code, domain, priority, dsl_version, status, dsl, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name, standard_code = EXCLUDED.standard_code, domain = EXCLUDED.domain,
		   priority = EXCLUDED.priority, dsl_version = EXCLUDED.dsl_version, status = EXCLUDED.status,
		   dsl = EXCLUDED.dsl, updated_at = EXCLUDED.updated_at`,
		skill.ID, skill.Name, skill.StandardCode, skill.Domain, skill.Priority,
		skill.DSLVersion, string(skill.Status), dslJSON, skill.CreatedAt, skill.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: put skill %s", skill.Name)
}

func (s *PostgresStore) GetSkill(ctx context.Context, ref string) (*model.Skill, error) {
	var sk model.Skill
	var dslJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, standard_code, domain, priority, dsl_version, status, dsl, created_at, updated_at
		 FROM skills WHERE id = $1 OR name = $1`,
		ref,
	).Scan(&sk.ID, &sk.Name, &sk.StandardCode, &sk.Domain, &sk.Priority,
		&sk.DSLVersion, &sk.Status, &dslJSON, &sk.CreatedAt, &sk.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("skill not found: %s", ref)
		}
		return nil, eris.Wrapf(err, "postgres: get skill %s", ref)
	}

	dsl, err := model.LoadSkillDSL(dslJSON)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load dsl for skill %s", sk.Name)
	}
	sk.DSL = dsl
	return &sk, nil
}

func (s *PostgresStore) ListSkills(ctx context.Context, domain string, status model.SkillStatus) ([]model.Skill, error) {
	query := `SELECT id, name, standard_code, domain, priority, dsl_version, status, dsl, created_at, updated_at
	          FROM skills WHERE true`
	args := []any{}
	argIdx := 1
	if domain != "" {
		query += fmt.Sprintf(` AND domain = $%d`, argIdx)
		args = append(args, domain)
		argIdx++
	}
	if status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(status))
	}
	query += ` ORDER BY priority DESC, name`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list skills")
	}
	defer rows.Close()

	var skills []model.Skill
	for rows.Next() {
		var sk model.Skill
		var dslJSON []byte
		if err := rows.Scan(&sk.ID, &sk.Name, &sk.StandardCode, &sk.Domain, &sk.Priority,
			&sk.DSLVersion, &sk.Status, &dslJSON, &sk.CreatedAt, &sk.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan skill")
		}
		dsl, err := model.LoadSkillDSL(dslJSON)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: load dsl for skill %s", sk.Name)
		}
		sk.DSL = dsl
		skills = append(skills, sk)
	}
	return skills, eris.Wrap(rows.Err(), "postgres: list skills iterate")
}

func (s *PostgresStore) UpdateSkillStatus(ctx context.Context, ref string, status model.SkillStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE skills SET status = $1, updated_at = $2 WHERE id = $3 OR name = $3`,
		string(status), time.Now().UTC(), ref,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update skill status %s", ref)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("skill not found: %s", ref)
	}
	return nil
}

func (s *PostgresStore) DeleteSkill(ctx context.Context, ref string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM skills WHERE id = $1 OR name = $1`, ref)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete skill %s", ref)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("skill not found: %s", ref)
	}
	return nil
}

// Execution log

func (s *PostgresStore) AppendExecutionRecord(ctx context.Context, rec *model.ExecutionRecord) error {
	stagesJSON, err := json.Marshal(rec.Stages)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stages")
	}
	var resultJSON []byte
	if rec.Result != nil {
		if resultJSON, err = json.Marshal(rec.Result); err != nil {
			return eris.Wrap(err, "postgres: marshal result")
		}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO execution_log
		 (correlation_id, input_text, matched_skill_id, stages, result, aggregate_confidence, duration_ms, outcome, error_detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.CorrelationID, rec.InputText, emptyToNil(rec.MatchedSkillID), stagesJSON, resultJSON,
		rec.AggregateConfidence, rec.DurationMs, string(rec.Outcome), emptyToNil(rec.ErrorDetail), rec.CreatedAt,
	)
	return eris.Wrap(err, "postgres: append execution record")
}

func (s *PostgresStore) ListExecutionRecords(ctx context.Context, limit, offset int) ([]model.ExecutionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT correlation_id, input_text, matched_skill_id, stages, result, aggregate_confidence, duration_ms, outcome, error_detail, created_at
		 FROM execution_log ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list execution records")
	}
	defer rows.Close()

	var recs []model.ExecutionRecord
	for rows.Next() {
		var rec model.ExecutionRecord
		var matched, errDetail sql.NullString
		var stagesJSON, resultJSON []byte
		if err := rows.Scan(&rec.CorrelationID, &rec.InputText, &matched, &stagesJSON, &resultJSON,
			&rec.AggregateConfidence, &rec.DurationMs, &rec.Outcome, &errDetail, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan execution record")
		}
		rec.MatchedSkillID = matched.String
		rec.ErrorDetail = errDetail.String
		if len(stagesJSON) > 0 {
			if err := json.Unmarshal(stagesJSON, &rec.Stages); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal stages")
			}
		}
		if len(resultJSON) > 0 {
			rec.Result = &model.ParseResult{}
			if err := json.Unmarshal(resultJSON, rec.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal result")
			}
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list execution records iterate")
}

// Datasets

func (s *PostgresStore) CreateDataset(ctx context.Context, dataset *model.Dataset) error {
	statsJSON, err := json.Marshal(dataset.DifficultyStats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal difficulty stats")
	}
	now := time.Now().UTC()
	if dataset.CreatedAt.IsZero() {
		dataset.CreatedAt = now
	}
	dataset.UpdatedAt = now

	_, err = s.pool.Exec(ctx,
		`INSERT INTO datasets (id, code, name, skill_id, source_type, difficulty_stats, total_cases, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		dataset.ID, dataset.Code, dataset.Name, emptyToNil(dataset.SkillID), string(dataset.SourceType),
		statsJSON, dataset.TotalCases, string(dataset.Status), dataset.CreatedAt, dataset.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: create dataset %s", dataset.Code)
}

func (s *PostgresStore) GetDataset(ctx context.Context, ref string) (*model.Dataset, error) {
	var d model.Dataset
	var skillID sql.NullString
	var statsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, code, name, skill_id, source_type, difficulty_stats, total_cases, status, created_at, updated_at
		 FROM datasets WHERE id = $1 OR code = $1`,
		ref,
	).Scan(&d.ID, &d.Code, &d.Name, &skillID, &d.SourceType, &statsJSON,
		&d.TotalCases, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("dataset not found: %s", ref)
		}
		return nil, eris.Wrapf(err, "postgres: get dataset %s", ref)
	}
	d.SkillID = skillID.String
	if len(statsJSON) > 0 {
		if err := json.Unmarshal(statsJSON, &d.DifficultyStats); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal difficulty stats")
		}
	}
	return &d, nil
}

func (s *PostgresStore) UpdateDataset(ctx context.Context, dataset *model.Dataset) error {
	statsJSON, err := json.Marshal(dataset.DifficultyStats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal difficulty stats")
	}
	dataset.UpdatedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx,
		`UPDATE datasets SET name = $1, skill_id = $2, source_type = $3, difficulty_stats = $4, total_cases = $5, status = $6, updated_at = $7
		 WHERE id = $8`,
		dataset.Name, emptyToNil(dataset.SkillID), string(dataset.SourceType), statsJSON,
		dataset.TotalCases, string(dataset.Status), dataset.UpdatedAt, dataset.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update dataset %s", dataset.Code)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("dataset not found: %s", dataset.ID)
	}
	return nil
}

func (s *PostgresStore) ListDatasets(ctx context.Context) ([]model.Dataset, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, code, name, skill_id, source_type, difficulty_stats, total_cases, status, created_at, updated_at
		 FROM datasets ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list datasets")
	}
	defer rows.Close()

	var datasets []model.Dataset
	for rows.Next() {
		var d model.Dataset
		var skillID sql.NullString
		var statsJSON []byte
		if err := rows.Scan(&d.ID, &d.Code, &d.Name, &skillID, &d.SourceType, &statsJSON,
			&d.TotalCases, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dataset")
		}
		d.SkillID = skillID.String
		if len(statsJSON) > 0 {
			if err := json.Unmarshal(statsJSON, &d.DifficultyStats); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal difficulty stats")
			}
		}
		datasets = append(datasets, d)
	}
	return datasets, eris.Wrap(rows.Err(), "postgres: list datasets iterate")
}

// Cases

func (s *PostgresStore) CreateCases(ctx context.Context, cases []model.Case) error {
	for i := range cases {
		c := &cases[i]
		attrsJSON, err := json.Marshal(c.ExpectedAttributes)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal expected attributes for %s", c.Code)
		}
		var categoryJSON, refJSON []byte
		if c.ExpectedCategory != nil {
			if categoryJSON, err = json.Marshal(c.ExpectedCategory); err != nil {
				return eris.Wrapf(err, "postgres: marshal expected category for %s", c.Code)
			}
		}
		if c.SourceRef != nil {
			if refJSON, err = json.Marshal(c.SourceRef); err != nil {
				return eris.Wrapf(err, "postgres: marshal source ref for %s", c.Code)
			}
		}

		if _, err := s.pool.Exec(ctx,
			`INSERT INTO cases (id, dataset_id, code, input_text, expected_skill_id, expected_attributes, expected_category, difficulty, source_type, source_ref, active, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			c.ID, c.DatasetID, c.Code, c.InputText, emptyToNil(c.ExpectedSkillID), attrsJSON,
			categoryJSON, string(c.Difficulty), string(c.SourceType), refJSON, c.Active, c.CreatedAt,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert case %s", c.Code)
		}
	}
	return nil
}

func (s *PostgresStore) ListCases(ctx context.Context, datasetID string, activeOnly bool) ([]model.Case, error) {
	query := `SELECT id, dataset_id, code, input_text, expected_skill_id, expected_attributes, expected_category, difficulty, source_type, source_ref, active, created_at
	          FROM cases WHERE dataset_id = $1`
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY created_at, code`

	rows, err := s.pool.Query(ctx, query, datasetID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list cases")
	}
	defer rows.Close()

	var cases []model.Case
	for rows.Next() {
		var c model.Case
		var expectedSkill sql.NullString
		var attrsJSON, categoryJSON, refJSON []byte
		if err := rows.Scan(&c.ID, &c.DatasetID, &c.Code, &c.InputText, &expectedSkill, &attrsJSON,
			&categoryJSON, &c.Difficulty, &c.SourceType, &refJSON, &c.Active, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan case")
		}
		c.ExpectedSkillID = expectedSkill.String
		if err := json.Unmarshal(attrsJSON, &c.ExpectedAttributes); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal expected attributes for %s", c.Code)
		}
		if len(categoryJSON) > 0 {
			c.ExpectedCategory = &model.Category{}
			if err := json.Unmarshal(categoryJSON, c.ExpectedCategory); err != nil {
				return nil, eris.Wrapf(err, "postgres: unmarshal expected category for %s", c.Code)
			}
		}
		if len(refJSON) > 0 {
			if err := json.Unmarshal(refJSON, &c.SourceRef); err != nil {
				return nil, eris.Wrapf(err, "postgres: unmarshal source ref for %s", c.Code)
			}
		}
		cases = append(cases, c)
	}
	return cases, eris.Wrap(rows.Err(), "postgres: list cases iterate")
}

func (s *PostgresStore) CountActiveCases(ctx context.Context, datasetID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM cases WHERE dataset_id = $1 AND active`,
		datasetID,
	).Scan(&count)
	return count, eris.Wrap(err, "postgres: count active cases")
}

// Runs

func (s *PostgresStore) CreateRun(ctx context.Context, run *model.Run) error {
	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run config")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, code, dataset_id, name, config, status, total_cases, completed_cases, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.ID, run.Code, run.DatasetID, run.Name, configJSON, string(run.Status),
		run.TotalCases, run.CompletedCases, run.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: create run %s", run.Code)
}

func (s *PostgresStore) GetRun(ctx context.Context, ref string) (*model.Run, error) {
	var r model.Run
	var configJSON, metricsJSON []byte
	var errDetail sql.NullString
	var startedAt, completedAt sql.NullTime
	err := s.pool.QueryRow(ctx,
		`SELECT id, code, dataset_id, name, config, status, total_cases, completed_cases, metrics, error_detail, started_at, completed_at, created_at
		 FROM runs WHERE id = $1 OR code = $1`,
		ref,
	).Scan(&r.ID, &r.Code, &r.DatasetID, &r.Name, &configJSON, &r.Status,
		&r.TotalCases, &r.CompletedCases, &metricsJSON, &errDetail, &startedAt, &completedAt, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("run not found: %s", ref)
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", ref)
	}
	if err := json.Unmarshal(configJSON, &r.Config); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal run config")
	}
	r.ErrorDetail = errDetail.String
	if len(metricsJSON) > 0 {
		r.Metrics = &model.Metrics{}
		if err := json.Unmarshal(metricsJSON, r.Metrics); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal metrics")
		}
	}
	if startedAt.Valid {
		r.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	return &r, nil
}

func (s *PostgresStore) UpdateRun(ctx context.Context, run *model.Run) error {
	var metricsJSON []byte
	var err error
	if run.Metrics != nil {
		if metricsJSON, err = json.Marshal(run.Metrics); err != nil {
			return eris.Wrap(err, "postgres: marshal metrics")
		}
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, total_cases = $2, completed_cases = $3, metrics = $4, error_detail = $5, started_at = $6, completed_at = $7
		 WHERE id = $8`,
		string(run.Status), run.TotalCases, run.CompletedCases, metricsJSON,
		emptyToNil(run.ErrorDetail), run.StartedAt, run.CompletedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run %s", run.Code)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, datasetID string, limit int) ([]model.Run, error) {
	query := `SELECT id, code, dataset_id, name, config, status, total_cases, completed_cases, metrics, error_detail, started_at, completed_at, created_at
	          FROM runs WHERE true`
	args := []any{}
	argIdx := 1
	if datasetID != "" {
		query += fmt.Sprintf(` AND dataset_id = $%d`, argIdx)
		args = append(args, datasetID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var configJSON, metricsJSON []byte
		var errDetail sql.NullString
		var startedAt, completedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.Code, &r.DatasetID, &r.Name, &configJSON, &r.Status,
			&r.TotalCases, &r.CompletedCases, &metricsJSON, &errDetail, &startedAt, &completedAt, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := json.Unmarshal(configJSON, &r.Config); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run config")
		}
		r.ErrorDetail = errDetail.String
		if len(metricsJSON) > 0 {
			r.Metrics = &model.Metrics{}
			if err := json.Unmarshal(metricsJSON, r.Metrics); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal metrics")
			}
		}
		if startedAt.Valid {
			r.StartedAt = &startedAt.Time
		}
		if completedAt.Valid {
			r.CompletedAt = &completedAt.Time
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// Results

func (s *PostgresStore) AppendResult(ctx context.Context, result *model.Result) error {
	var attrsJSON, categoryJSON, scoresJSON []byte
	var err error
	if result.ActualAttributes != nil {
		if attrsJSON, err = json.Marshal(result.ActualAttributes); err != nil {
			return eris.Wrap(err, "postgres: marshal actual attributes")
		}
	}
	if result.ActualCategory != nil {
		if categoryJSON, err = json.Marshal(result.ActualCategory); err != nil {
			return eris.Wrap(err, "postgres: marshal actual category")
		}
	}
	if result.AttributeScores != nil {
		if scoresJSON, err = json.Marshal(result.AttributeScores); err != nil {
			return eris.Wrap(err, "postgres: marshal attribute scores")
		}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO results
		 (id, run_id, case_id, actual_skill_id, actual_attributes, actual_category, actual_confidence, duration_ms, skill_match, attribute_scores, overall_score, status, error_detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		result.ID, result.RunID, result.CaseID, emptyToNil(result.ActualSkillID),
		attrsJSON, categoryJSON, result.ActualConfidence, result.DurationMs, result.SkillMatch,
		scoresJSON, result.OverallScore, string(result.Status), emptyToNil(result.ErrorDetail), result.CreatedAt,
	)
	return eris.Wrap(err, "postgres: append result")
}

func (s *PostgresStore) ListResults(ctx context.Context, runID string, filter ResultFilter) ([]model.Result, error) {
	query := `SELECT id, run_id, case_id, actual_skill_id, actual_attributes, actual_category, actual_confidence, duration_ms, skill_match, attribute_scores, overall_score, status, error_detail, created_at
	          FROM results WHERE run_id = $1`
	args := []any{runID}
	argIdx := 2
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		query += fmt.Sprintf(` AND status = ANY($%d)`, argIdx)
		args = append(args, statuses)
		argIdx++
	}
	query += ` ORDER BY created_at`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		var r model.Result
		var actualSkill, errDetail sql.NullString
		var attrsJSON, categoryJSON, scoresJSON []byte
		var confidence sql.NullFloat64
		var skillMatch sql.NullBool
		if err := rows.Scan(&r.ID, &r.RunID, &r.CaseID, &actualSkill, &attrsJSON, &categoryJSON,
			&confidence, &r.DurationMs, &skillMatch, &scoresJSON, &r.OverallScore, &r.Status,
			&errDetail, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		r.ActualSkillID = actualSkill.String
		r.ErrorDetail = errDetail.String
		if confidence.Valid {
			r.ActualConfidence = &confidence.Float64
		}
		if skillMatch.Valid {
			matched := skillMatch.Bool
			r.SkillMatch = &matched
		}
		if len(attrsJSON) > 0 {
			if err := json.Unmarshal(attrsJSON, &r.ActualAttributes); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal actual attributes")
			}
		}
		if len(categoryJSON) > 0 {
			r.ActualCategory = &model.Category{}
			if err := json.Unmarshal(categoryJSON, r.ActualCategory); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal actual category")
			}
		}
		if len(scoresJSON) > 0 {
			if err := json.Unmarshal(scoresJSON, &r.AttributeScores); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal attribute scores")
			}
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: list results iterate")
}

// emptyToNil maps empty strings to NULL so optional TEXT columns stay null.
func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
