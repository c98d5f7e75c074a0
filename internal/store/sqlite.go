package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/skill-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS skills (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	standard_code TEXT NOT NULL DEFAULT '',
	domain        TEXT NOT NULL DEFAULT '',
	priority      INTEGER NOT NULL DEFAULT 0,
	dsl_version   TEXT NOT NULL DEFAULT '1.0',
	status        TEXT NOT NULL DEFAULT 'draft',
	dsl           TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS execution_log (
	correlation_id       TEXT PRIMARY KEY,
	input_text           TEXT NOT NULL,
	matched_skill_id     TEXT,
	stages               TEXT,
	result               TEXT,
	aggregate_confidence REAL NOT NULL DEFAULT 0,
	duration_ms          INTEGER NOT NULL DEFAULT 0,
	outcome              TEXT NOT NULL,
	error_detail         TEXT,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS datasets (
	id               TEXT PRIMARY KEY,
	code             TEXT NOT NULL UNIQUE,
	name             TEXT NOT NULL,
	skill_id         TEXT,
	source_type      TEXT NOT NULL DEFAULT 'generated',
	difficulty_stats TEXT,
	total_cases      INTEGER NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'draft',
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS cases (
	id                  TEXT PRIMARY KEY,
	dataset_id          TEXT NOT NULL REFERENCES datasets(id),
	code                TEXT NOT NULL,
	input_text          TEXT NOT NULL,
	expected_skill_id   TEXT,
	expected_attributes TEXT NOT NULL,
	expected_category   TEXT,
	difficulty          TEXT NOT NULL,
	source_type         TEXT NOT NULL,
	source_ref          TEXT,
	active              INTEGER NOT NULL DEFAULT 1,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	code            TEXT NOT NULL UNIQUE,
	dataset_id      TEXT NOT NULL REFERENCES datasets(id),
	name            TEXT NOT NULL,
	config          TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	total_cases     INTEGER NOT NULL DEFAULT 0,
	completed_cases INTEGER NOT NULL DEFAULT 0,
	metrics         TEXT,
	error_detail    TEXT,
	started_at      DATETIME,
	completed_at    DATETIME,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS results (
	id                TEXT PRIMARY KEY,
	run_id            TEXT NOT NULL REFERENCES runs(id),
	case_id           TEXT NOT NULL REFERENCES cases(id),
	actual_skill_id   TEXT,
	actual_attributes TEXT,
	actual_category   TEXT,
	actual_confidence REAL,
	duration_ms       INTEGER NOT NULL DEFAULT 0,
	skill_match       INTEGER,
	attribute_scores  TEXT,
	overall_score     REAL NOT NULL DEFAULT 0,
	status            TEXT NOT NULL,
	error_detail      TEXT,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_skills_status ON skills(status);
CREATE INDEX IF NOT EXISTS idx_skills_domain ON skills(domain);
CREATE INDEX IF NOT EXISTS idx_execution_log_created_at ON execution_log(created_at);
CREATE INDEX IF NOT EXISTS idx_cases_dataset_id ON cases(dataset_id);
CREATE INDEX IF NOT EXISTS idx_runs_dataset_id ON runs(dataset_id);
CREATE INDEX IF NOT EXISTS idx_results_run_id ON results(run_id);
CREATE INDEX IF NOT EXISTS idx_results_status ON results(run_id, status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Skills

func (s *SQLiteStore) PutSkill(ctx context.Context, skill *model.Skill) error {
	dslJSON, err := json.Marshal(skill.DSL)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal dsl")
	}
	now := time.Now().UTC()
	if skill.CreatedAt.IsZero() {
		skill.CreatedAt = now
	}
	skill.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO skills (id, name, standard_code, domain, priority, dsl_version, status, dsl, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name, standard_code = excluded.standard_code, domain = excluded.domain,
		   priority = excluded.priority, dsl_version = excluded.dsl_version, status = excluded.status,
		   dsl = excluded.dsl, updated_at = excluded.updated_at`,
		skill.ID, skill.Name, skill.StandardCode, skill.Domain, skill.Priority,
		skill.DSLVersion, string(skill.Status), string(dslJSON), skill.CreatedAt, skill.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: put skill %s", skill.Name)
}

func (s *SQLiteStore) GetSkill(ctx context.Context, ref string) (*model.Skill, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, standard_code, domain, priority, dsl_version, status, dsl, created_at, updated_at
		 FROM skills WHERE id = ? OR name = ?`,
		ref, ref,
	)
	return scanSkill(row)
}

func (s *SQLiteStore) ListSkills(ctx context.Context, domain string, status model.SkillStatus) ([]model.Skill, error) {
	query := `SELECT id, name, standard_code, domain, priority, dsl_version, status, dsl, created_at, updated_at
	          FROM skills WHERE 1=1`
	var args []any
	if domain != "" {
		query += ` AND domain = ?`
		args = append(args, domain)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY priority DESC, name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list skills")
	}
	defer rows.Close()

	var skills []model.Skill
	for rows.Next() {
		sk, err := scanSkill(rows)
		if err != nil {
			return nil, err
		}
		skills = append(skills, *sk)
	}
	return skills, eris.Wrap(rows.Err(), "sqlite: list skills iterate")
}

func (s *SQLiteStore) UpdateSkillStatus(ctx context.Context, ref string, status model.SkillStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE skills SET status = ?, updated_at = ? WHERE id = ? OR name = ?`,
		string(status), time.Now().UTC(), ref, ref,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update skill status %s", ref)
	}
	return checkRowsAffected(res, "skill", ref)
}

func (s *SQLiteStore) DeleteSkill(ctx context.Context, ref string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM skills WHERE id = ? OR name = ?`, ref, ref)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete skill %s", ref)
	}
	return checkRowsAffected(res, "skill", ref)
}

// Execution log

func (s *SQLiteStore) AppendExecutionRecord(ctx context.Context, rec *model.ExecutionRecord) error {
	stagesJSON, err := json.Marshal(rec.Stages)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stages")
	}
	var resultJSON []byte
	if rec.Result != nil {
		if resultJSON, err = json.Marshal(rec.Result); err != nil {
			return eris.Wrap(err, "sqlite: marshal result")
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO execution_log
		 (correlation_id, input_text, matched_skill_id, stages, result, aggregate_confidence, duration_ms, outcome, error_detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CorrelationID, rec.InputText, nullString(rec.MatchedSkillID), string(stagesJSON),
		nullString(string(resultJSON)), rec.AggregateConfidence, rec.DurationMs,
		string(rec.Outcome), nullString(rec.ErrorDetail), rec.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: append execution record")
}

func (s *SQLiteStore) ListExecutionRecords(ctx context.Context, limit, offset int) ([]model.ExecutionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT correlation_id, input_text, matched_skill_id, stages, result, aggregate_confidence, duration_ms, outcome, error_detail, created_at
		 FROM execution_log ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list execution records")
	}
	defer rows.Close()

	var recs []model.ExecutionRecord
	for rows.Next() {
		var rec model.ExecutionRecord
		var matched, stagesJSON, resultJSON, errDetail sql.NullString
		if err := rows.Scan(&rec.CorrelationID, &rec.InputText, &matched, &stagesJSON, &resultJSON,
			&rec.AggregateConfidence, &rec.DurationMs, &rec.Outcome, &errDetail, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan execution record")
		}
		rec.MatchedSkillID = matched.String
		rec.ErrorDetail = errDetail.String
		if stagesJSON.Valid && stagesJSON.String != "" {
			if err := json.Unmarshal([]byte(stagesJSON.String), &rec.Stages); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal stages")
			}
		}
		if resultJSON.Valid && resultJSON.String != "" {
			rec.Result = &model.ParseResult{}
			if err := json.Unmarshal([]byte(resultJSON.String), rec.Result); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal result")
			}
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list execution records iterate")
}

// Datasets

func (s *SQLiteStore) CreateDataset(ctx context.Context, dataset *model.Dataset) error {
	statsJSON, err := json.Marshal(dataset.DifficultyStats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal difficulty stats")
	}
	now := time.Now().UTC()
	if dataset.CreatedAt.IsZero() {
		dataset.CreatedAt = now
	}
	dataset.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO datasets (id, code, name, skill_id, source_type, difficulty_stats, total_cases, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		dataset.ID, dataset.Code, dataset.Name, nullString(dataset.SkillID), string(dataset.SourceType),
		string(statsJSON), dataset.TotalCases, string(dataset.Status), dataset.CreatedAt, dataset.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: create dataset %s", dataset.Code)
}

func (s *SQLiteStore) GetDataset(ctx context.Context, ref string) (*model.Dataset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, code, name, skill_id, source_type, difficulty_stats, total_cases, status, created_at, updated_at
		 FROM datasets WHERE id = ? OR code = ?`,
		ref, ref,
	)
	return scanDataset(row)
}

func (s *SQLiteStore) UpdateDataset(ctx context.Context, dataset *model.Dataset) error {
	statsJSON, err := json.Marshal(dataset.DifficultyStats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal difficulty stats")
	}
	dataset.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE datasets SET name = ?, skill_id = ?, source_type = ?, difficulty_stats = ?, total_cases = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		dataset.Name, nullString(dataset.SkillID), string(dataset.SourceType), string(statsJSON),
		dataset.TotalCases, string(dataset.Status), dataset.UpdatedAt, dataset.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update dataset %s", dataset.Code)
	}
	return checkRowsAffected(res, "dataset", dataset.ID)
}

func (s *SQLiteStore) ListDatasets(ctx context.Context) ([]model.Dataset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code, name, skill_id, source_type, difficulty_stats, total_cases, status, created_at, updated_at
		 FROM datasets ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list datasets")
	}
	defer rows.Close()

	var datasets []model.Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, *d)
	}
	return datasets, eris.Wrap(rows.Err(), "sqlite: list datasets iterate")
}

// Cases

func (s *SQLiteStore) CreateCases(ctx context.Context, cases []model.Case) error {
	if len(cases) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cases (id, dataset_id, code, input_text, expected_skill_id, expected_attributes, expected_category, difficulty, source_type, source_ref, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert case")
	}
	defer stmt.Close()

	for i := range cases {
		c := &cases[i]
		attrsJSON, err := json.Marshal(c.ExpectedAttributes)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal expected attributes for %s", c.Code)
		}
		var categoryJSON []byte
		if c.ExpectedCategory != nil {
			if categoryJSON, err = json.Marshal(c.ExpectedCategory); err != nil {
				return eris.Wrapf(err, "sqlite: marshal expected category for %s", c.Code)
			}
		}
		var refJSON []byte
		if c.SourceRef != nil {
			if refJSON, err = json.Marshal(c.SourceRef); err != nil {
				return eris.Wrapf(err, "sqlite: marshal source ref for %s", c.Code)
			}
		}

		if _, err := stmt.ExecContext(ctx,
			c.ID, c.DatasetID, c.Code, c.InputText, nullString(c.ExpectedSkillID), string(attrsJSON),
			nullString(string(categoryJSON)), string(c.Difficulty), string(c.SourceType),
			nullString(string(refJSON)), boolToInt(c.Active), c.CreatedAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert case %s", c.Code)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit cases")
}

func (s *SQLiteStore) ListCases(ctx context.Context, datasetID string, activeOnly bool) ([]model.Case, error) {
	query := `SELECT id, dataset_id, code, input_text, expected_skill_id, expected_attributes, expected_category, difficulty, source_type, source_ref, active, created_at
	          FROM cases WHERE dataset_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY created_at, code`

	rows, err := s.db.QueryContext(ctx, query, datasetID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list cases")
	}
	defer rows.Close()

	var cases []model.Case
	for rows.Next() {
		var c model.Case
		var expectedSkill, categoryJSON, refJSON sql.NullString
		var attrsJSON string
		var active int
		if err := rows.Scan(&c.ID, &c.DatasetID, &c.Code, &c.InputText, &expectedSkill, &attrsJSON,
			&categoryJSON, &c.Difficulty, &c.SourceType, &refJSON, &active, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan case")
		}
		c.ExpectedSkillID = expectedSkill.String
		c.Active = active != 0
		if err := json.Unmarshal([]byte(attrsJSON), &c.ExpectedAttributes); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal expected attributes for %s", c.Code)
		}
		if categoryJSON.Valid && categoryJSON.String != "" {
			c.ExpectedCategory = &model.Category{}
			if err := json.Unmarshal([]byte(categoryJSON.String), c.ExpectedCategory); err != nil {
				return nil, eris.Wrapf(err, "sqlite: unmarshal expected category for %s", c.Code)
			}
		}
		if refJSON.Valid && refJSON.String != "" {
			if err := json.Unmarshal([]byte(refJSON.String), &c.SourceRef); err != nil {
				return nil, eris.Wrapf(err, "sqlite: unmarshal source ref for %s", c.Code)
			}
		}
		cases = append(cases, c)
	}
	return cases, eris.Wrap(rows.Err(), "sqlite: list cases iterate")
}

func (s *SQLiteStore) CountActiveCases(ctx context.Context, datasetID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cases WHERE dataset_id = ? AND active = 1`,
		datasetID,
	).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count active cases")
}

// Runs

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run) error {
	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run config")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, code, dataset_id, name, config, status, total_cases, completed_cases, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Code, run.DatasetID, run.Name, string(configJSON), string(run.Status),
		run.TotalCases, run.CompletedCases, run.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: create run %s", run.Code)
}

func (s *SQLiteStore) GetRun(ctx context.Context, ref string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, code, dataset_id, name, config, status, total_cases, completed_cases, metrics, error_detail, started_at, completed_at, created_at
		 FROM runs WHERE id = ? OR code = ?`,
		ref, ref,
	)
	return scanRun(row)
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *model.Run) error {
	var metricsJSON []byte
	var err error
	if run.Metrics != nil {
		if metricsJSON, err = json.Marshal(run.Metrics); err != nil {
			return eris.Wrap(err, "sqlite: marshal metrics")
		}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, total_cases = ?, completed_cases = ?, metrics = ?, error_detail = ?, started_at = ?, completed_at = ?
		 WHERE id = ?`,
		string(run.Status), run.TotalCases, run.CompletedCases, nullString(string(metricsJSON)),
		nullString(run.ErrorDetail), nullTime(run.StartedAt), nullTime(run.CompletedAt), run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run %s", run.Code)
	}
	return checkRowsAffected(res, "run", run.ID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, datasetID string, limit int) ([]model.Run, error) {
	query := `SELECT id, code, dataset_id, name, config, status, total_cases, completed_cases, metrics, error_detail, started_at, completed_at, created_at
	          FROM runs WHERE 1=1`
	var args []any
	if datasetID != "" {
		query += ` AND dataset_id = ?`
		args = append(args, datasetID)
	}
	query += ` ORDER BY created_at DESC`
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// Results

func (s *SQLiteStore) AppendResult(ctx context.Context, result *model.Result) error {
	var attrsJSON, categoryJSON, scoresJSON []byte
	var err error
	if result.ActualAttributes != nil {
		if attrsJSON, err = json.Marshal(result.ActualAttributes); err != nil {
			return eris.Wrap(err, "sqlite: marshal actual attributes")
		}
	}
	if result.ActualCategory != nil {
		if categoryJSON, err = json.Marshal(result.ActualCategory); err != nil {
			return eris.Wrap(err, "sqlite: marshal actual category")
		}
	}
	if result.AttributeScores != nil {
		if scoresJSON, err = json.Marshal(result.AttributeScores); err != nil {
			return eris.Wrap(err, "sqlite: marshal attribute scores")
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO results
		 (id, run_id, case_id, actual_skill_id, actual_attributes, actual_category, actual_confidence, duration_ms, skill_match, attribute_scores, overall_score, status, error_detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.RunID, result.CaseID, nullString(result.ActualSkillID),
		nullString(string(attrsJSON)), nullString(string(categoryJSON)), result.ActualConfidence,
		result.DurationMs, boolPtrToInt(result.SkillMatch), nullString(string(scoresJSON)),
		result.OverallScore, string(result.Status), nullString(result.ErrorDetail), result.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: append result")
}

func (s *SQLiteStore) ListResults(ctx context.Context, runID string, filter ResultFilter) ([]model.Result, error) {
	query := `SELECT id, run_id, case_id, actual_skill_id, actual_attributes, actual_category, actual_confidence, duration_ms, skill_match, attribute_scores, overall_score, status, error_detail, created_at
	          FROM results WHERE run_id = ?`
	args := []any{runID}
	if len(filter.Statuses) > 0 {
		query += ` AND status IN (`
		for i, st := range filter.Statuses {
			if i > 0 {
				query += `, `
			}
			query += `?`
			args = append(args, string(st))
		}
		query += `)`
	}
	query += ` ORDER BY created_at`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		var r model.Result
		var actualSkill, attrsJSON, categoryJSON, scoresJSON, errDetail sql.NullString
		var confidence sql.NullFloat64
		var skillMatch sql.NullInt64
		if err := rows.Scan(&r.ID, &r.RunID, &r.CaseID, &actualSkill, &attrsJSON, &categoryJSON,
			&confidence, &r.DurationMs, &skillMatch, &scoresJSON, &r.OverallScore, &r.Status,
			&errDetail, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		r.ActualSkillID = actualSkill.String
		r.ErrorDetail = errDetail.String
		if confidence.Valid {
			r.ActualConfidence = &confidence.Float64
		}
		if skillMatch.Valid {
			matched := skillMatch.Int64 != 0
			r.SkillMatch = &matched
		}
		if attrsJSON.Valid && attrsJSON.String != "" {
			if err := json.Unmarshal([]byte(attrsJSON.String), &r.ActualAttributes); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal actual attributes")
			}
		}
		if categoryJSON.Valid && categoryJSON.String != "" {
			r.ActualCategory = &model.Category{}
			if err := json.Unmarshal([]byte(categoryJSON.String), r.ActualCategory); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal actual category")
			}
		}
		if scoresJSON.Valid && scoresJSON.String != "" {
			if err := json.Unmarshal([]byte(scoresJSON.String), &r.AttributeScores); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal attribute scores")
			}
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: list results iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSkill(row scannable) (*model.Skill, error) {
	var sk model.Skill
	var dslJSON string
	err := row.Scan(&sk.ID, &sk.Name, &sk.StandardCode, &sk.Domain, &sk.Priority,
		&sk.DSLVersion, &sk.Status, &dslJSON, &sk.CreatedAt, &sk.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("skill not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan skill")
	}

	dsl, err := model.LoadSkillDSL([]byte(dslJSON))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load dsl for skill %s", sk.Name)
	}
	sk.DSL = dsl
	return &sk, nil
}

func scanDataset(row scannable) (*model.Dataset, error) {
	var d model.Dataset
	var skillID, statsJSON sql.NullString
	err := row.Scan(&d.ID, &d.Code, &d.Name, &skillID, &d.SourceType, &statsJSON,
		&d.TotalCases, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("dataset not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan dataset")
	}
	d.SkillID = skillID.String
	if statsJSON.Valid && statsJSON.String != "" {
		if err := json.Unmarshal([]byte(statsJSON.String), &d.DifficultyStats); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal difficulty stats")
		}
	}
	return &d, nil
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var configJSON string
	var metricsJSON, errDetail sql.NullString
	var startedAt, completedAt sql.NullTime
	err := row.Scan(&r.ID, &r.Code, &r.DatasetID, &r.Name, &configJSON, &r.Status,
		&r.TotalCases, &r.CompletedCases, &metricsJSON, &errDetail, &startedAt, &completedAt, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if err := json.Unmarshal([]byte(configJSON), &r.Config); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal run config")
	}
	r.ErrorDetail = errDetail.String
	if metricsJSON.Valid && metricsJSON.String != "" {
		r.Metrics = &model.Metrics{}
		if err := json.Unmarshal([]byte(metricsJSON.String), r.Metrics); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal metrics")
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

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func boolPtrToInt(b *bool) any {
	if b == nil {
		return nil
	}
	return boolToInt(*b)
}
