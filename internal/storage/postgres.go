/**
 * PostgreSQL-backed stores for reference templates and verification
 * sessions.
 *
 * Alternate driver for deployments that already run Postgres. The session
 * guards are expressed in the UPDATE predicates so concurrent workers cannot
 * regress percent, re-open a terminal session or overwrite a result.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/ncsverify/verifier-worker/internal/pipeline"
)

const schemaStatements = `
CREATE TABLE IF NOT EXISTS reference_templates (
	seq        BIGSERIAL,
	id         UUID PRIMARY KEY,
	doc_type   TEXT NOT NULL,
	version    TEXT NOT NULL,
	metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
	image_path TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS verification_sessions (
	id         UUID PRIMARY KEY,
	doc_type   TEXT NOT NULL,
	stage      TEXT NOT NULL,
	percent    INT NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// PostgresStore owns the connection pool and hands out the reference and
// session store views over it.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to the database, verifies connectivity and
// bootstraps the schema.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schemaStatements); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to bootstrap schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// References returns the reference template store view.
func (p *PostgresStore) References() *PostgresReferenceStore {
	return &PostgresReferenceStore{db: p.db}
}

// Sessions returns the session store view.
func (p *PostgresStore) Sessions() *PostgresSessionStore {
	return &PostgresSessionStore{db: p.db}
}

// Ping checks database connectivity
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresStore) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// PostgresReferenceStore implements pipeline.ReferenceStore.
type PostgresReferenceStore struct {
	db *sql.DB
}

// Add enrolls a reference template. A missing ID is filled in.
func (s *PostgresReferenceStore) Add(ctx context.Context, ref *pipeline.ReferenceTemplate) error {
	if ref.ID == "" {
		ref.ID = uuid.New().String()
	}
	if ref.CreatedAt.IsZero() {
		ref.CreatedAt = time.Now().UTC()
	}
	metadataJSON, err := json.Marshal(ref.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO reference_templates (id, doc_type, version, metadata, image_path, created_at)
		VALUES ($1::uuid, $2, $3, $4::jsonb, $5, $6)
	`
	if _, err := s.db.ExecContext(ctx, query, ref.ID, ref.DocType, ref.Version, metadataJSON, ref.ImagePath, ref.CreatedAt); err != nil {
		return fmt.Errorf("failed to add reference %s: %w", ref.ID, err)
	}
	return nil
}

// Get retrieves a reference template by ID.
func (s *PostgresReferenceStore) Get(ctx context.Context, id string) (*pipeline.ReferenceTemplate, error) {
	query := `
		SELECT id, doc_type, version, metadata, image_path, created_at
		FROM reference_templates
		WHERE id = $1::uuid
	`
	ref, err := scanReference(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("reference %s: %w", id, pipeline.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reference %s: %w", id, err)
	}
	return ref, nil
}

// List returns all reference templates in enrollment order.
func (s *PostgresReferenceStore) List(ctx context.Context) ([]*pipeline.ReferenceTemplate, error) {
	query := `
		SELECT id, doc_type, version, metadata, image_path, created_at
		FROM reference_templates
		ORDER BY seq
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list references: %w", err)
	}
	defer rows.Close()

	refs := make([]*pipeline.ReferenceTemplate, 0)
	for rows.Next() {
		ref, err := scanReference(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reference: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReference(row rowScanner) (*pipeline.ReferenceTemplate, error) {
	var ref pipeline.ReferenceTemplate
	var metadataJSON []byte
	if err := row.Scan(&ref.ID, &ref.DocType, &ref.Version, &metadataJSON, &ref.ImagePath, &ref.CreatedAt); err != nil {
		return nil, err
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &ref.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &ref, nil
}

// PostgresSessionStore implements pipeline.SessionStore.
type PostgresSessionStore struct {
	db *sql.DB
}

// Create opens a new session in the queued state and returns its ID.
func (s *PostgresSessionStore) Create(ctx context.Context, docType string) (string, error) {
	id := uuid.New().String()
	query := `
		INSERT INTO verification_sessions (id, doc_type, stage, percent, created_at)
		VALUES ($1::uuid, $2, $3, $4, NOW())
	`
	if _, err := s.db.ExecContext(ctx, query, id, docType, string(pipeline.StageQueued), pipeline.PercentQueued); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

// UpdateStatus advances a session's stage, percent and message as one write.
// The predicate rejects percent regressions and terminal sessions.
func (s *PostgresSessionStore) UpdateStatus(ctx context.Context, id string, stage pipeline.Stage, percent int, message string) error {
	query := `
		UPDATE verification_sessions
		SET stage = $2, percent = $3, message = $4
		WHERE id = $1::uuid
		  AND stage NOT IN ($5, $6)
		  AND percent <= $3
	`
	res, err := s.db.ExecContext(ctx, query, id, string(stage), percent, message,
		string(pipeline.StageDone), string(pipeline.StageError))
	if err != nil {
		return fmt.Errorf("failed to update session %s to %s: %w", id, stage, err)
	}
	return s.requireUpdated(ctx, res, id)
}

// SetResult attaches the analysis result and moves the session to done.
func (s *PostgresSessionStore) SetResult(ctx context.Context, id string, result *pipeline.AnalysisResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	query := `
		UPDATE verification_sessions
		SET stage = $2, percent = $3, message = '', result = $4::jsonb
		WHERE id = $1::uuid
		  AND stage NOT IN ($2, $5)
		  AND result IS NULL
	`
	res, err := s.db.ExecContext(ctx, query, id, string(pipeline.StageDone), pipeline.PercentTerminal,
		resultJSON, string(pipeline.StageError))
	if err != nil {
		return fmt.Errorf("failed to set result for session %s: %w", id, err)
	}
	return s.requireUpdated(ctx, res, id)
}

// Get retrieves a session by ID.
func (s *PostgresSessionStore) Get(ctx context.Context, id string) (*pipeline.Session, error) {
	query := `
		SELECT id, doc_type, stage, percent, message, result, created_at
		FROM verification_sessions
		WHERE id = $1::uuid
	`
	var session pipeline.Session
	var stage string
	var resultJSON []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID, &session.DocType, &stage, &session.Percent,
		&session.Message, &resultJSON, &session.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", id, pipeline.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	session.Stage = pipeline.Stage(stage)
	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &session.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}
	return &session, nil
}

// requireUpdated distinguishes a missing session from a rejected update.
func (s *PostgresSessionStore) requireUpdated(ctx context.Context, res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of session %s: %w", id, err)
	}
	if affected > 0 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM verification_sessions WHERE id = $1::uuid)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check session %s: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("session %s: %w", id, pipeline.ErrNotFound)
	}
	return fmt.Errorf("session %s: update rejected (terminal, regressing or already resolved)", id)
}
