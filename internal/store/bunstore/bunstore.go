// Package bunstore is a Postgres-backed ExecutionStore, grounded on
// mbflow's BunStore (NewBunStore/InitSchema/model-per-table shape) and its
// infrastructure/storage/db.go connection setup.
package bunstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/flowcore/engine/internal/executor"
	"github.com/flowcore/engine/internal/store"
)

var _ store.ExecutionStore = (*BunStore)(nil)

// Config configures the underlying Postgres connection pool.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns sane pool defaults, overridable per field.
func DefaultConfig(dsn string) Config {
	return Config{
		DSN:             dsn,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}
}

// BunStore persists executor.Record via bun + pgdriver.
type BunStore struct {
	db *bun.DB
}

// NewBunStore opens a pooled Postgres connection and wraps it in a bun.DB.
func NewBunStore(cfg Config) *BunStore {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db := bun.NewDB(sqldb, pgdialect.New())
	return &BunStore{db: db}
}

// InitSchema creates the execution_records table if absent.
func (s *BunStore) InitSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*executionRecordModel)(nil)).IfNotExists().Exec(ctx)
	return err
}

// executionRecordModel is the row shape for one persisted Record;
// NodeExecutions is stored as jsonb rather than a child table since it is
// always read and written as a whole unit, never queried by node.
type executionRecordModel struct {
	bun.BaseModel `bun:"table:execution_records,alias:er"`

	ID             string    `bun:"id,pk"`
	WorkflowID     string    `bun:"workflow_id"`
	DeploymentID   string    `bun:"deployment_id"`
	UserID         string    `bun:"user_id"`
	OrganizationID string    `bun:"organization_id"`
	Status         string    `bun:"status"`
	StartedAt      int64     `bun:"started_at"`
	EndedAt        int64     `bun:"ended_at"`
	Error          string    `bun:"error"`
	NodeExecutions []byte    `bun:"node_executions,type:jsonb"`
	SavedAt        time.Time `bun:"saved_at,default:current_timestamp"`
}

func newExecutionRecordModel(r *executor.Record) (*executionRecordModel, error) {
	raw, err := json.Marshal(r.NodeExecutions)
	if err != nil {
		return nil, fmt.Errorf("bunstore: marshal node executions: %w", err)
	}
	return &executionRecordModel{
		ID:             r.ID,
		WorkflowID:     r.WorkflowID,
		DeploymentID:   r.DeploymentID,
		UserID:         r.UserID,
		OrganizationID: r.OrganizationID,
		Status:         string(r.Status),
		StartedAt:      r.StartedAt,
		EndedAt:        r.EndedAt,
		Error:          r.Error,
		NodeExecutions: raw,
	}, nil
}

func (m *executionRecordModel) toRecord() (*executor.Record, error) {
	var nodes []executor.NodeSummary
	if len(m.NodeExecutions) > 0 {
		if err := json.Unmarshal(m.NodeExecutions, &nodes); err != nil {
			return nil, fmt.Errorf("bunstore: unmarshal node executions: %w", err)
		}
	}
	return &executor.Record{
		ID:             m.ID,
		WorkflowID:     m.WorkflowID,
		DeploymentID:   m.DeploymentID,
		UserID:         m.UserID,
		OrganizationID: m.OrganizationID,
		Status:         executor.Status(m.Status),
		StartedAt:      m.StartedAt,
		EndedAt:        m.EndedAt,
		Error:          m.Error,
		NodeExecutions: nodes,
	}, nil
}

// Save implements store.ExecutionStore with an upsert keyed on execution id,
// so a replayed durable step persisting twice is idempotent.
func (s *BunStore) Save(ctx context.Context, record *executor.Record) (*executor.Record, error) {
	model, err := newExecutionRecordModel(record)
	if err != nil {
		return nil, err
	}
	_, err = s.db.NewInsert().
		Model(model).
		On("CONFLICT (id) DO UPDATE").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("bunstore: save record %s: %w", record.ID, err)
	}
	return record, nil
}

// Get retrieves a previously saved Record by execution ID.
func (s *BunStore) Get(ctx context.Context, executionID string) (*executor.Record, error) {
	model := new(executionRecordModel)
	err := s.db.NewSelect().Model(model).Where("id = ?", executionID).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bunstore: get record %s: %w", executionID, err)
	}
	return model.toRecord()
}

// Ping checks connectivity.
func (s *BunStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *BunStore) Close() error {
	return s.db.Close()
}
