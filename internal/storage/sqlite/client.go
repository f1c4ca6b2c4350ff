package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/knowledge-assistant/backend/internal/storage/models"
	"github.com/knowledge-assistant/backend/pkg/apperrors"
	"github.com/knowledge-assistant/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tenants (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		slug TEXT UNIQUE NOT NULL,
		is_active INTEGER DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		source TEXT,
		content_hash TEXT NOT NULL,
		chunk_count INTEGER DEFAULT 0,
		is_active INTEGER DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (tenant_id) REFERENCES tenants(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_documents_tenant ON documents(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(tenant_id, content_hash);

	CREATE TABLE IF NOT EXISTS document_chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id INTEGER NOT NULL,
		tenant_id INTEGER NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		vector_id TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE,
		FOREIGN KEY (tenant_id) REFERENCES tenants(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON document_chunks(document_id);

	CREATE TABLE IF NOT EXISTS ai_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id INTEGER NOT NULL,
		request_id TEXT UNIQUE NOT NULL,
		question TEXT NOT NULL,
		context_chunks TEXT,
		prompt_tokens INTEGER,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (tenant_id) REFERENCES tenants(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_requests_tenant ON ai_requests(tenant_id);

	CREATE TABLE IF NOT EXISTS ai_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		tenant_id INTEGER NOT NULL,
		answer TEXT NOT NULL,
		sources TEXT,
		confidence TEXT,
		completion_tokens INTEGER,
		total_tokens INTEGER,
		latency_ms INTEGER,
		was_cached INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (request_id) REFERENCES ai_requests(request_id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_results_request ON ai_results(request_id);

	CREATE TABLE IF NOT EXISTS audit_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id INTEGER,
		action TEXT NOT NULL,
		entity_type TEXT,
		entity_id INTEGER,
		details TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_tenant ON audit_logs(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_logs(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) CreateTenant(ctx context.Context, name, slug string) (*models.Tenant, error) {
	var existing int64
	err := c.db.QueryRowContext(ctx, `SELECT id FROM tenants WHERE slug = ?`, slug).Scan(&existing)
	if err == nil {
		return nil, fmt.Errorf("tenant slug %q already exists: %w", slug, apperrors.ErrConflict)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check tenant slug: %w", err)
	}

	now := time.Now()
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO tenants (name, slug, is_active, created_at, updated_at) VALUES (?, ?, 1, ?, ?)`,
		name, slug, now.Unix(), now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert tenant: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant id: %w", err)
	}

	logger.Info("Tenant created", zap.Int64("tenant_id", id), zap.String("slug", slug))

	return &models.Tenant{
		ID:        id,
		Name:      name,
		Slug:      slug,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (c *Client) GetTenant(ctx context.Context, tenantID int64) (*models.Tenant, error) {
	var t models.Tenant
	var isActive int
	var createdAt, updatedAt int64

	err := c.db.QueryRowContext(ctx,
		`SELECT id, name, slug, is_active, created_at, updated_at FROM tenants WHERE id = ?`,
		tenantID,
	).Scan(&t.ID, &t.Name, &t.Slug, &isActive, &createdAt, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tenant %d: %w", tenantID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	t.IsActive = isActive == 1
	t.CreatedAt = time.Unix(createdAt, 0)
	t.UpdatedAt = time.Unix(updatedAt, 0)

	return &t, nil
}

func (c *Client) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, name, slug, is_active, created_at, updated_at FROM tenants WHERE is_active = 1 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []models.Tenant
	for rows.Next() {
		var t models.Tenant
		var isActive int
		var createdAt, updatedAt int64

		err := rows.Scan(&t.ID, &t.Name, &t.Slug, &isActive, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		t.IsActive = isActive == 1
		t.CreatedAt = time.Unix(createdAt, 0)
		t.UpdatedAt = time.Unix(updatedAt, 0)
		tenants = append(tenants, t)
	}

	return tenants, rows.Err()
}

// FindDocumentByHash returns nil without error when no active document
// in the tenant carries the fingerprint.
func (c *Client) FindDocumentByHash(ctx context.Context, tenantID int64, contentHash string) (*models.Document, error) {
	var d models.Document
	var isActive int
	var source sql.NullString
	var createdAt, updatedAt int64

	err := c.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, title, content, source, content_hash, chunk_count, is_active, created_at, updated_at
		 FROM documents WHERE tenant_id = ? AND content_hash = ? AND is_active = 1`,
		tenantID, contentHash,
	).Scan(&d.ID, &d.TenantID, &d.Title, &d.Content, &source, &d.ContentHash, &d.ChunkCount, &isActive, &createdAt, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find document by hash: %w", err)
	}

	d.Source = source.String
	d.IsActive = isActive == 1
	d.CreatedAt = time.Unix(createdAt, 0)
	d.UpdatedAt = time.Unix(updatedAt, 0)

	return &d, nil
}

func (c *Client) InsertDocument(ctx context.Context, doc *models.Document) error {
	now := time.Now()
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO documents (tenant_id, title, content, source, content_hash, chunk_count, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, 1, ?, ?)`,
		doc.TenantID, doc.Title, doc.Content, doc.Source, doc.ContentHash, now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get document id: %w", err)
	}

	doc.ID = id
	doc.IsActive = true
	doc.CreatedAt = now
	doc.UpdatedAt = now

	logger.Debug("Document inserted", zap.Int64("document_id", id), zap.Int64("tenant_id", doc.TenantID))
	return nil
}

func (c *Client) GetDocument(ctx context.Context, tenantID, documentID int64) (*models.Document, error) {
	var d models.Document
	var isActive int
	var source sql.NullString
	var createdAt, updatedAt int64

	err := c.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, title, content, source, content_hash, chunk_count, is_active, created_at, updated_at
		 FROM documents WHERE id = ? AND tenant_id = ?`,
		documentID, tenantID,
	).Scan(&d.ID, &d.TenantID, &d.Title, &d.Content, &source, &d.ContentHash, &d.ChunkCount, &isActive, &createdAt, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %d: %w", documentID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	d.Source = source.String
	d.IsActive = isActive == 1
	d.CreatedAt = time.Unix(createdAt, 0)
	d.UpdatedAt = time.Unix(updatedAt, 0)

	return &d, nil
}

func (c *Client) ListDocuments(ctx context.Context, tenantID int64) ([]models.Document, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, tenant_id, title, source, content_hash, chunk_count, created_at
		 FROM documents WHERE tenant_id = ? AND is_active = 1 ORDER BY id`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var d models.Document
		var source sql.NullString
		var createdAt int64

		err := rows.Scan(&d.ID, &d.TenantID, &d.Title, &source, &d.ContentHash, &d.ChunkCount, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		d.Source = source.String
		d.IsActive = true
		d.CreatedAt = time.Unix(createdAt, 0)
		docs = append(docs, d)
	}

	return docs, rows.Err()
}

func (c *Client) SoftDeleteDocument(ctx context.Context, tenantID, documentID int64) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE documents SET is_active = 0, updated_at = ? WHERE id = ? AND tenant_id = ?`,
		time.Now().Unix(), documentID, tenantID,
	)
	if err != nil {
		return fmt.Errorf("failed to soft delete document: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check soft delete: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("document %d: %w", documentID, apperrors.ErrNotFound)
	}

	return nil
}

func (c *Client) InsertChunk(ctx context.Context, chunk *models.DocumentChunk) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO document_chunks (document_id, tenant_id, chunk_index, content, vector_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		chunk.DocumentID, chunk.TenantID, chunk.ChunkIndex, chunk.Content, chunk.VectorID, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}

	return nil
}

func (c *Client) SetDocumentChunkCount(ctx context.Context, documentID int64, count int) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE documents SET chunk_count = ?, updated_at = ? WHERE id = ?`,
		count, time.Now().Unix(), documentID,
	)
	if err != nil {
		return fmt.Errorf("failed to set chunk count: %w", err)
	}

	return nil
}

func (c *Client) InsertRequest(ctx context.Context, req *models.AIRequest) error {
	chunksJSON, err := json.Marshal(req.ContextChunks)
	if err != nil {
		return fmt.Errorf("failed to marshal context chunks: %w", err)
	}

	res, err := c.db.ExecContext(ctx,
		`INSERT INTO ai_requests (tenant_id, request_id, question, context_chunks, prompt_tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		req.TenantID, req.RequestID, req.Question, string(chunksJSON), req.PromptTokens, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}

	req.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get request id: %w", err)
	}

	return nil
}

func (c *Client) InsertResult(ctx context.Context, result *models.AIResult) error {
	sourcesJSON, err := json.Marshal(result.Sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}

	wasCached := 0
	if result.WasCached {
		wasCached = 1
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO ai_results (request_id, tenant_id, answer, sources, confidence, completion_tokens, total_tokens, latency_ms, was_cached, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RequestID, result.TenantID, result.Answer, string(sourcesJSON), result.Confidence,
		result.CompletionTokens, result.TotalTokens, result.LatencyMS, wasCached, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}

	logger.Info("Result recorded",
		zap.String("request_id", result.RequestID),
		zap.String("confidence", result.Confidence),
		zap.Bool("was_cached", result.WasCached),
	)

	return nil
}

func (c *Client) InsertAudit(ctx context.Context, audit *models.AuditLog) error {
	detailsJSON, _ := json.Marshal(audit.Details)

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO audit_logs (tenant_id, action, entity_type, entity_id, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		audit.TenantID, audit.Action, audit.EntityType, audit.EntityID, string(detailsJSON), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

func (c *Client) HealthCheck(ctx context.Context) bool {
	return c.db.PingContext(ctx) == nil
}
