// File path: internal/catalog/store.go
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/planforge/planforge/internal/docgen"
	"github.com/planforge/planforge/internal/sanitizer"
)

// Store persists mapping tables and generated document audit records in a
// SQLite catalog.
type Store struct {
	db *sqlx.DB
}

// Open constructs a Store backed by the SQLite database at path, migrating
// the schema on first use. An empty path falls back to the environment
// configuration.
func Open(path string) (*Store, error) {
	cfg := LoadConfig()
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		cfg.Path = trimmed
	}
	return OpenWithConfig(cfg)
}

// OpenWithConfig constructs a Store using the provided configuration.
func OpenWithConfig(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("catalog path required")
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve catalog path: %w", err)
	}
	busy := int(cfg.BusyTimeout / time.Millisecond)
	if busy <= 0 {
		busy = 5000
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", abs, busy)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.BusyTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("catalog store not initialised")
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute schema statement %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

var schemaStatements = []string{
	`PRAGMA journal_mode = WAL;`,
	`PRAGMA foreign_keys = ON;`,
	`CREATE TABLE IF NOT EXISTS mapping_bindings (
                project_id TEXT NOT NULL,
                token TEXT NOT NULL,
                value TEXT NOT NULL,
                created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                PRIMARY KEY (project_id, token)
        );`,
	`CREATE TABLE IF NOT EXISTS documents (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                project_id TEXT NOT NULL,
                doc_type TEXT NOT NULL,
                methodology TEXT NOT NULL,
                provider TEXT,
                model TEXT,
                prompt_tokens INTEGER NOT NULL DEFAULT 0,
                completion_tokens INTEGER NOT NULL DEFAULT 0,
                total_tokens INTEGER NOT NULL DEFAULT 0,
                cost_usd REAL NOT NULL DEFAULT 0,
                duration_ms INTEGER NOT NULL DEFAULT 0,
                error INTEGER NOT NULL DEFAULT 0,
                fallback TEXT NOT NULL DEFAULT '',
                degraded_sections TEXT,
                content TEXT NOT NULL,
                started_at DATETIME,
                completed_at DATETIME,
                created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
	`CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(project_id, created_at);`,
}

// StoreMapping replaces the persisted mapping table for a project.
func (s *Store) StoreMapping(ctx context.Context, projectID string, bindings []sanitizer.Binding) error {
	if strings.TrimSpace(projectID) == "" {
		return errors.New("project id required")
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin mapping store: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM mapping_bindings WHERE project_id = ?`, projectID); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear mapping bindings: %w", err)
	}
	for _, b := range bindings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO mapping_bindings (project_id, token, value) VALUES (?, ?, ?)`,
			projectID, b.Token, b.Value); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert mapping binding: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mapping store: %w", err)
	}
	return nil
}

// RetrieveMapping loads a project's mapping table. A project with no stored
// bindings yields an empty, valid table.
func (s *Store) RetrieveMapping(ctx context.Context, projectID string) (*sanitizer.MappingTable, error) {
	var rows []struct {
		Token string `db:"token"`
		Value string `db:"value"`
	}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT token, value FROM mapping_bindings WHERE project_id = ? ORDER BY created_at, token`, projectID)
	if err != nil {
		return nil, fmt.Errorf("load mapping bindings: %w", err)
	}
	bindings := make([]sanitizer.Binding, 0, len(rows))
	for _, row := range rows {
		bindings = append(bindings, sanitizer.Binding{Token: row.Token, Value: row.Value})
	}
	return sanitizer.NewMappingTable(bindings)
}

type documentRow struct {
	ProjectID        string         `db:"project_id"`
	DocType          string         `db:"doc_type"`
	Methodology      string         `db:"methodology"`
	Provider         sql.NullString `db:"provider"`
	Model            sql.NullString `db:"model"`
	PromptTokens     int64          `db:"prompt_tokens"`
	CompletionTokens int64          `db:"completion_tokens"`
	TotalTokens      int64          `db:"total_tokens"`
	CostUSD          float64        `db:"cost_usd"`
	DurationMs       int64          `db:"duration_ms"`
	Error            bool           `db:"error"`
	Fallback         string         `db:"fallback"`
	DegradedSections sql.NullString `db:"degraded_sections"`
	Content          string         `db:"content"`
	StartedAt        sql.NullTime   `db:"started_at"`
	CompletedAt      sql.NullTime   `db:"completed_at"`
}

const insertDocumentQuery = `INSERT INTO documents (
        project_id, doc_type, methodology, provider, model,
        prompt_tokens, completion_tokens, total_tokens, cost_usd, duration_ms,
        error, fallback, degraded_sections, content, started_at, completed_at
) VALUES (
        :project_id, :doc_type, :methodology, :provider, :model,
        :prompt_tokens, :completion_tokens, :total_tokens, :cost_usd, :duration_ms,
        :error, :fallback, :degraded_sections, :content, :started_at, :completed_at
)`

// SaveDocuments appends one audit record per generated document. Records are
// append-only: re-running a project keeps earlier generations for history.
func (s *Store) SaveDocuments(ctx context.Context, projectID string, docs []docgen.GeneratedDocument) error {
	if strings.TrimSpace(projectID) == "" {
		return errors.New("project id required")
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin document save: %w", err)
	}
	for _, doc := range docs {
		row := documentRow{
			ProjectID:        projectID,
			DocType:          doc.Metadata.Type.Key(),
			Methodology:      string(doc.Metadata.Methodology),
			Provider:         nullString(doc.Metadata.Provider),
			Model:            nullString(doc.Metadata.Model),
			PromptTokens:     doc.Metadata.PromptTokens,
			CompletionTokens: doc.Metadata.CompletionTokens,
			TotalTokens:      doc.Metadata.TotalTokens,
			CostUSD:          doc.Metadata.CostUSD,
			DurationMs:       doc.Metadata.DurationMs,
			Error:            doc.Metadata.Error,
			Fallback:         string(doc.Metadata.Fallback),
			Content:          string(doc.Content),
			StartedAt:        nullTime(doc.Metadata.StartedAt),
			CompletedAt:      nullTime(doc.Metadata.CompletedAt),
		}
		if len(doc.Metadata.DegradedSections) > 0 {
			encoded, err := json.Marshal(doc.Metadata.DegradedSections)
			if err != nil {
				tx.Rollback()
				return fmt.Errorf("encode degraded sections: %w", err)
			}
			row.DegradedSections = nullString(string(encoded))
		}
		if _, err := tx.NamedExecContext(ctx, insertDocumentQuery, row); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert document record: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit document save: %w", err)
	}
	return nil
}

// Documents returns a project's stored documents, most recent first.
func (s *Store) Documents(ctx context.Context, projectID string) ([]docgen.GeneratedDocument, error) {
	var rows []documentRow
	err := s.db.SelectContext(ctx, &rows, `SELECT
                project_id, doc_type, methodology, provider, model,
                prompt_tokens, completion_tokens, total_tokens, cost_usd, duration_ms,
                error, fallback, degraded_sections, content, started_at, completed_at
        FROM documents WHERE project_id = ? ORDER BY id DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	docs := make([]docgen.GeneratedDocument, 0, len(rows))
	for _, row := range rows {
		docType, err := docgen.ParseDocumentType(row.DocType)
		if err != nil {
			return nil, fmt.Errorf("stored document: %w", err)
		}
		doc := docgen.GeneratedDocument{
			Content: json.RawMessage(row.Content),
			Metadata: docgen.Metadata{
				Type:             docType,
				Methodology:      docgen.Methodology(row.Methodology),
				Provider:         row.Provider.String,
				Model:            row.Model.String,
				PromptTokens:     row.PromptTokens,
				CompletionTokens: row.CompletionTokens,
				TotalTokens:      row.TotalTokens,
				CostUSD:          row.CostUSD,
				DurationMs:       row.DurationMs,
				Error:            row.Error,
				Fallback:         docgen.FallbackKind(row.Fallback),
			},
		}
		if row.DegradedSections.Valid && row.DegradedSections.String != "" {
			if err := json.Unmarshal([]byte(row.DegradedSections.String), &doc.Metadata.DegradedSections); err != nil {
				return nil, fmt.Errorf("decode degraded sections: %w", err)
			}
		}
		if row.StartedAt.Valid {
			doc.Metadata.StartedAt = row.StartedAt.Time
		}
		if row.CompletedAt.Valid {
			doc.Metadata.CompletedAt = row.CompletedAt.Time
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func nullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
