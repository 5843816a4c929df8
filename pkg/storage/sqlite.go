package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dshills/flowmod/pkg/domain/submission"
	"github.com/dshills/flowmod/pkg/domain/types"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteSubmissionRepository implements submission.Repository using SQLite storage.
type SQLiteSubmissionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ submission.Repository = (*SQLiteSubmissionRepository)(nil)

// NewSQLiteSubmissionRepository opens (and if needed creates) the database at dbPath.
func NewSQLiteSubmissionRepository(dbPath string, logger *slog.Logger) (*SQLiteSubmissionRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := InitializeDatabase(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logger.Debug("submission history opened", "path", dbPath)
	return &SQLiteSubmissionRepository{db: db, logger: logger}, nil
}

// Close closes the database connection.
func (r *SQLiteSubmissionRepository) Close() error {
	return r.db.Close()
}

// Save persists a submission, replacing an existing record with the same ID.
func (r *SQLiteSubmissionRepository) Save(s *submission.Submission) error {
	if s == nil {
		return fmt.Errorf("cannot save nil submission")
	}
	if s.ID.IsZero() {
		return fmt.Errorf("submission ID cannot be empty")
	}

	var summary sql.NullString
	if len(s.Summary) > 0 {
		data, err := json.Marshal(s.Summary)
		if err != nil {
			return fmt.Errorf("failed to marshal summary: %w", err)
		}
		summary = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO submissions (
			id, request_id, instance_id, process_id, submitted_at,
			instruction_count, summary, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			request_id = excluded.request_id,
			instance_id = excluded.instance_id,
			process_id = excluded.process_id,
			submitted_at = excluded.submitted_at,
			instruction_count = excluded.instruction_count,
			summary = excluded.summary,
			payload = excluded.payload
	`

	_, err := execWithRetry(r.db, query,
		s.ID.String(),
		s.RequestID,
		s.InstanceID.String(),
		s.ProcessID,
		s.SubmittedAt,
		s.InstructionCount,
		summary,
		string(s.Payload),
	)
	if err != nil {
		return fmt.Errorf("failed to save submission: %w", err)
	}

	r.logger.Debug("submission saved", "id", s.ID, "instance", s.InstanceID, "instructions", s.InstructionCount)
	return nil
}

const selectSubmission = `
	SELECT id, request_id, instance_id, process_id, submitted_at,
	       instruction_count, summary, payload
	FROM submissions
`

// Load retrieves a submission by its ID.
func (r *SQLiteSubmissionRepository) Load(id types.SubmissionID) (*submission.Submission, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("submission ID cannot be empty")
	}

	row := r.db.QueryRow(selectSubmission+" WHERE id = ?", id.String())
	s, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", submission.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}
	return s, nil
}

// ListByInstance returns all submissions for an instance, most recent first.
func (r *SQLiteSubmissionRepository) ListByInstance(instanceID types.InstanceID) ([]*submission.Submission, error) {
	return r.query(selectSubmission+" WHERE instance_id = ? ORDER BY submitted_at DESC", instanceID.String())
}

// List returns up to limit submissions, most recent first. limit <= 0 returns all.
func (r *SQLiteSubmissionRepository) List(limit int) ([]*submission.Submission, error) {
	if limit <= 0 {
		return r.query(selectSubmission + " ORDER BY submitted_at DESC")
	}
	return r.query(selectSubmission+" ORDER BY submitted_at DESC LIMIT ?", limit)
}

// Delete removes a submission.
func (r *SQLiteSubmissionRepository) Delete(id types.SubmissionID) error {
	if id.IsZero() {
		return fmt.Errorf("submission ID cannot be empty")
	}

	result, err := execWithRetry(r.db, "DELETE FROM submissions WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", submission.ErrNotFound, id)
	}
	return nil
}

func (r *SQLiteSubmissionRepository) query(query string, args ...any) ([]*submission.Submission, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]*submission.Submission, 0)
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		result = append(result, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submissions: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (*submission.Submission, error) {
	var s submission.Submission
	var summary sql.NullString
	var payload string

	err := row.Scan(
		&s.ID,
		&s.RequestID,
		&s.InstanceID,
		&s.ProcessID,
		&s.SubmittedAt,
		&s.InstructionCount,
		&summary,
		&payload,
	)
	if err != nil {
		return nil, err
	}

	s.Payload = []byte(payload)
	if summary.Valid {
		if err := json.Unmarshal([]byte(summary.String), &s.Summary); err != nil {
			return nil, fmt.Errorf("failed to parse summary: %w", err)
		}
	}
	return &s, nil
}
