// Package store persists skills, execution records, and benchmark entities
// behind a single interface with SQLite and PostgreSQL implementations.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/skill-engine/internal/config"
	"github.com/sells-group/skill-engine/internal/model"
)

// ResultFilter narrows result listings.
type ResultFilter struct {
	Statuses []model.ResultStatus `json:"statuses,omitempty"`
	Limit    int                  `json:"limit,omitempty"`
	Offset   int                  `json:"offset,omitempty"`
}

// Store defines the persistence interface for the skill engine and benchmark
// harness. Get methods accept either the entity's id or its human-readable
// code where one exists.
type Store interface {
	// Skills
	PutSkill(ctx context.Context, skill *model.Skill) error
	GetSkill(ctx context.Context, ref string) (*model.Skill, error)
	ListSkills(ctx context.Context, domain string, status model.SkillStatus) ([]model.Skill, error)
	UpdateSkillStatus(ctx context.Context, ref string, status model.SkillStatus) error
	DeleteSkill(ctx context.Context, ref string) error

	// Execution log
	AppendExecutionRecord(ctx context.Context, rec *model.ExecutionRecord) error
	ListExecutionRecords(ctx context.Context, limit, offset int) ([]model.ExecutionRecord, error)

	// Datasets
	CreateDataset(ctx context.Context, dataset *model.Dataset) error
	GetDataset(ctx context.Context, ref string) (*model.Dataset, error)
	UpdateDataset(ctx context.Context, dataset *model.Dataset) error
	ListDatasets(ctx context.Context) ([]model.Dataset, error)

	// Cases
	CreateCases(ctx context.Context, cases []model.Case) error
	ListCases(ctx context.Context, datasetID string, activeOnly bool) ([]model.Case, error)
	CountActiveCases(ctx context.Context, datasetID string) (int, error)

	// Runs
	CreateRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, ref string) (*model.Run, error)
	UpdateRun(ctx context.Context, run *model.Run) error
	ListRuns(ctx context.Context, datasetID string, limit int) ([]model.Run, error)

	// Results
	AppendResult(ctx context.Context, result *model.Result) error
	ListResults(ctx context.Context, runID string, filter ResultFilter) ([]model.Result, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// New opens the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{
			MaxConns: int32(cfg.MaxConns),
			MinConns: int32(cfg.MinConns),
		})
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
