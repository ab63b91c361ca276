// Package metadatastore provides the Postgres-backed MetadataStore,
// storing data source registrations and an append-only log of document
// versions so tag updates and re-upserts never destroy history.
//
// Document versions are keyed by (data_source_id, document_id) only, not
// by project: a document's owning data source already determines its
// project, and Document itself carries no project field, so the project
// argument accepted by several MetadataStore methods is unused here.
package metadatastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/fyrsmithlabs/contextd/internal/datasource"
	"github.com/fyrsmithlabs/contextd/internal/datasource/dserr"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS data_sources (
  project text NOT NULL,
  data_source_id text NOT NULL,
  internal_id text NOT NULL,
  created_at timestamptz NOT NULL,
  config jsonb NOT NULL,
  PRIMARY KEY (project, data_source_id)
);

CREATE TABLE IF NOT EXISTS document_versions (
  id bigserial PRIMARY KEY,
  data_source_id text NOT NULL,
  document_id text NOT NULL,
  hash text NOT NULL,
  created_at timestamptz NOT NULL,
  doc_timestamp bigint NOT NULL,
  tags jsonb NOT NULL,
  source_url text NOT NULL,
  text_size int NOT NULL,
  chunk_count int NOT NULL,
  token_count int NOT NULL,
  body text NOT NULL
);

CREATE INDEX IF NOT EXISTS document_versions_latest_idx
  ON document_versions (data_source_id, document_id, id DESC);
`

// Store implements datasource.MetadataStore against Postgres.
type Store struct {
	db *sql.DB
}

// Open connects to dsn (a postgres:// URL) and ensures the schema exists.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening metadata database: %w", err)
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if _, err := db.Exec(schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensuring metadata schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) RegisterDataSource(ctx context.Context, ds *datasource.DataSource) error {
	configJSON, err := json.Marshal(ds.Config)
	if err != nil {
		return fmt.Errorf("marshaling data source config: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO data_sources (project, data_source_id, internal_id, created_at, config)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project, data_source_id)
		DO UPDATE SET internal_id = EXCLUDED.internal_id, config = EXCLUDED.config`,
		ds.Project, ds.DataSourceID, ds.InternalID, ds.Created, configJSON)
	if err != nil {
		return fmt.Errorf("%w: registering data source: %v", dserr.ErrMetadata, err)
	}
	return nil
}

func (s *Store) LoadDataSource(ctx context.Context, project, dataSourceID string) (*datasource.DataSource, error) {
	var ds datasource.DataSource
	var configJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT project, data_source_id, internal_id, created_at, config
		FROM data_sources WHERE project = $1 AND data_source_id = $2`,
		project, dataSourceID,
	).Scan(&ds.Project, &ds.DataSourceID, &ds.InternalID, &ds.Created, &configJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dserr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading data source: %v", dserr.ErrMetadata, err)
	}
	if err := json.Unmarshal(configJSON, &ds.Config); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling data source config: %v", dserr.ErrMetadata, err)
	}
	return &ds, nil
}

func (s *Store) UpsertDataSourceDocument(ctx context.Context, doc *datasource.Document) error {
	tagsJSON, err := json.Marshal(doc.Tags)
	if err != nil {
		return fmt.Errorf("marshaling tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO document_versions
			(data_source_id, document_id, hash, created_at, doc_timestamp,
			 tags, source_url, text_size, chunk_count, token_count, body)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		doc.DataSourceID, doc.DocumentID, doc.Hash, doc.Created, doc.Timestamp,
		tagsJSON, doc.SourceURL, doc.TextSize, doc.ChunkCount, doc.TokenCount, doc.Text)
	if err != nil {
		return fmt.Errorf("%w: upserting document version: %v", dserr.ErrMetadata, err)
	}
	return nil
}

func (s *Store) LoadDataSourceDocument(ctx context.Context, _, dataSourceID, documentID string, versionHash *string) (*datasource.Document, error) {
	var row *sql.Row
	if versionHash == nil {
		row = s.db.QueryRowContext(ctx, `
			SELECT hash, created_at, doc_timestamp, tags, source_url, text_size, chunk_count, token_count, body
			FROM document_versions
			WHERE data_source_id = $1 AND document_id = $2
			ORDER BY id DESC LIMIT 1`,
			dataSourceID, documentID)
	} else {
		row = s.db.QueryRowContext(ctx, `
			SELECT hash, created_at, doc_timestamp, tags, source_url, text_size, chunk_count, token_count, body
			FROM document_versions
			WHERE data_source_id = $1 AND document_id = $2 AND hash = $3
			ORDER BY id DESC LIMIT 1`,
			dataSourceID, documentID, *versionHash)
	}

	doc := datasource.Document{DataSourceID: dataSourceID, DocumentID: documentID}
	var tagsJSON []byte
	err := row.Scan(&doc.Hash, &doc.Created, &doc.Timestamp, &tagsJSON, &doc.SourceURL,
		&doc.TextSize, &doc.ChunkCount, &doc.TokenCount, &doc.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dserr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading document version: %v", dserr.ErrMetadata, err)
	}
	if err := json.Unmarshal(tagsJSON, &doc.Tags); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling tags: %v", dserr.ErrMetadata, err)
	}
	return &doc, nil
}

func (s *Store) ListDataSourceDocuments(ctx context.Context, _, dataSourceID string) ([]*datasource.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (document_id)
			document_id, hash, created_at, doc_timestamp, tags, source_url, text_size, chunk_count, token_count, body
		FROM document_versions
		WHERE data_source_id = $1
		ORDER BY document_id, id DESC`,
		dataSourceID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing documents: %v", dserr.ErrMetadata, err)
	}
	defer rows.Close()

	var out []*datasource.Document
	for rows.Next() {
		doc := datasource.Document{DataSourceID: dataSourceID}
		var tagsJSON []byte
		if err := rows.Scan(&doc.DocumentID, &doc.Hash, &doc.Created, &doc.Timestamp, &tagsJSON,
			&doc.SourceURL, &doc.TextSize, &doc.ChunkCount, &doc.TokenCount, &doc.Text); err != nil {
			return nil, fmt.Errorf("%w: scanning document row: %v", dserr.ErrMetadata, err)
		}
		if err := json.Unmarshal(tagsJSON, &doc.Tags); err != nil {
			return nil, fmt.Errorf("%w: unmarshaling tags: %v", dserr.ErrMetadata, err)
		}
		out = append(out, &doc)
	}
	return out, rows.Err()
}

func (s *Store) UpdateDataSourceDocumentTags(ctx context.Context, _, dataSourceID, documentID string, add, remove []string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: beginning tag update: %v", dserr.ErrMetadata, err)
	}
	defer tx.Rollback()

	var tagsJSON []byte
	var hash, sourceURL, body string
	var created time.Time
	var docTimestamp int64
	var textSize, chunkCount, tokenCount int
	err = tx.QueryRowContext(ctx, `
		SELECT tags, hash, created_at, doc_timestamp, source_url, text_size, chunk_count, token_count, body
		FROM document_versions
		WHERE data_source_id = $1 AND document_id = $2
		ORDER BY id DESC LIMIT 1`,
		dataSourceID, documentID,
	).Scan(&tagsJSON, &hash, &created, &docTimestamp, &sourceURL, &textSize, &chunkCount, &tokenCount, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dserr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading document for tag update: %v", dserr.ErrMetadata, err)
	}

	var tags []string
	if err := json.Unmarshal(tagsJSON, &tags); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling tags: %v", dserr.ErrMetadata, err)
	}

	removeSet := make(map[string]bool, len(remove))
	for _, t := range remove {
		removeSet[t] = true
	}
	kept := make([]string, 0, len(tags))
	for _, t := range tags {
		if !removeSet[t] {
			kept = append(kept, t)
		}
	}
	kept = append(kept, add...)

	newTagsJSON, err := json.Marshal(kept)
	if err != nil {
		return nil, fmt.Errorf("marshaling updated tags: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO document_versions
			(data_source_id, document_id, hash, created_at, doc_timestamp,
			 tags, source_url, text_size, chunk_count, token_count, body)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		dataSourceID, documentID, hash, created, docTimestamp,
		newTagsJSON, sourceURL, textSize, chunkCount, tokenCount, body)
	if err != nil {
		return nil, fmt.Errorf("%w: writing tag-updated version: %v", dserr.ErrMetadata, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: committing tag update: %v", dserr.ErrMetadata, err)
	}
	return kept, nil
}

func (s *Store) DeleteDataSourceDocument(ctx context.Context, _, dataSourceID, documentID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM document_versions WHERE data_source_id = $1 AND document_id = $2`,
		dataSourceID, documentID)
	if err != nil {
		return fmt.Errorf("%w: deleting document: %v", dserr.ErrMetadata, err)
	}
	return nil
}

func (s *Store) DeleteDataSource(ctx context.Context, project, dataSourceID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning data source delete: %v", dserr.ErrMetadata, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM document_versions WHERE data_source_id = $1`,
		dataSourceID); err != nil {
		return fmt.Errorf("%w: deleting document versions: %v", dserr.ErrMetadata, err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM data_sources WHERE project = $1 AND data_source_id = $2`,
		project, dataSourceID); err != nil {
		return fmt.Errorf("%w: deleting data source row: %v", dserr.ErrMetadata, err)
	}
	return tx.Commit()
}

var _ datasource.MetadataStore = (*Store)(nil)
