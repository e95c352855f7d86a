package graphstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Mimir-AIP/OntoGraph-Go/pkg/models"
)

// SQLiteStore persists the fused knowledge graph to a SQLite database.
// Attributes are stored as JSON blobs; the schema is created on open.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) a SQLite-backed store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		canonical_name TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		confidence REAL NOT NULL,
		attributes TEXT,
		timestamp TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(entity_type);

	CREATE TABLE IF NOT EXISTS relationships (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		relationship_type TEXT NOT NULL,
		confidence REAL NOT NULL,
		attributes TEXT,
		source_document TEXT,
		timestamp TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_id);
	CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SaveEntities upserts entities by ID in a single transaction.
func (s *SQLiteStore) SaveEntities(ctx context.Context, entities []models.Entity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entities (id, canonical_name, entity_type, confidence, attributes, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			canonical_name = excluded.canonical_name,
			entity_type = excluded.entity_type,
			confidence = excluded.confidence,
			attributes = excluded.attributes,
			timestamp = excluded.timestamp`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entities {
		attrs, err := json.Marshal(e.Attributes)
		if err != nil {
			return fmt.Errorf("failed to serialize attributes for entity %s: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.CanonicalName, e.EntityType, e.Confidence, string(attrs), formatTimestamp(e.Timestamp)); err != nil {
			return fmt.Errorf("failed to save entity %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// SaveRelationships upserts relationships by ID in a single transaction.
func (s *SQLiteStore) SaveRelationships(ctx context.Context, relationships []models.Relationship) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO relationships (id, source_id, target_id, relationship_type, confidence, attributes, source_document, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_id = excluded.source_id,
			target_id = excluded.target_id,
			relationship_type = excluded.relationship_type,
			confidence = excluded.confidence,
			attributes = excluded.attributes,
			source_document = excluded.source_document,
			timestamp = excluded.timestamp`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range relationships {
		attrs, err := json.Marshal(r.Attributes)
		if err != nil {
			return fmt.Errorf("failed to serialize attributes for relationship %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.SourceID, r.TargetID, r.RelationshipType, r.Confidence, string(attrs), r.SourceDocument, formatTimestamp(r.Timestamp)); err != nil {
			return fmt.Errorf("failed to save relationship %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// GetEntity looks up one entity by ID; nil when absent.
func (s *SQLiteStore) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, canonical_name, entity_type, confidence, attributes, timestamp FROM entities WHERE id = ?`, id)

	entity, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load entity %s: %w", id, err)
	}
	return entity, nil
}

// ListEntities returns stored entities, optionally filtered by type. A
// non-positive limit means no limit.
func (s *SQLiteStore) ListEntities(ctx context.Context, entityType string, limit int) ([]models.Entity, error) {
	query := `SELECT id, canonical_name, entity_type, confidence, attributes, timestamp FROM entities`
	args := []any{}
	if entityType != "" {
		query += ` WHERE entity_type = ?`
		args = append(args, entityType)
	}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	entities := []models.Entity{}
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, *entity)
	}
	return entities, rows.Err()
}

// ListRelationships returns stored relationships.
func (s *SQLiteStore) ListRelationships(ctx context.Context, limit int) ([]models.Relationship, error) {
	query := `SELECT id, source_id, target_id, relationship_type, confidence, attributes, source_document, timestamp FROM relationships`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	defer rows.Close()

	relationships := []models.Relationship{}
	for rows.Next() {
		var r models.Relationship
		var attrs, sourceDoc, ts sql.NullString
		if err := rows.Scan(&r.ID, &r.SourceID, &r.TargetID, &r.RelationshipType, &r.Confidence, &attrs, &sourceDoc, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		if attrs.Valid && attrs.String != "" {
			if err := json.Unmarshal([]byte(attrs.String), &r.Attributes); err != nil {
				return nil, fmt.Errorf("failed to parse attributes for relationship %s: %w", r.ID, err)
			}
		}
		r.SourceDocument = sourceDoc.String
		r.Timestamp = parseTimestamp(ts)
		relationships = append(relationships, r)
	}
	return relationships, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*models.Entity, error) {
	var e models.Entity
	var attrs, ts sql.NullString
	if err := row.Scan(&e.ID, &e.CanonicalName, &e.EntityType, &e.Confidence, &attrs, &ts); err != nil {
		return nil, err
	}
	if attrs.Valid && attrs.String != "" {
		if err := json.Unmarshal([]byte(attrs.String), &e.Attributes); err != nil {
			return nil, fmt.Errorf("failed to parse attributes: %w", err)
		}
	}
	e.Timestamp = parseTimestamp(ts)
	return &e, nil
}

func formatTimestamp(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func parseTimestamp(ts sql.NullString) *time.Time {
	if !ts.Valid || ts.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ts.String)
	if err != nil {
		return nil
	}
	return &t
}
