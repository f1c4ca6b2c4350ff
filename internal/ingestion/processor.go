package ingestion

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/knowledge-assistant/backend/internal/chunker"
	"github.com/knowledge-assistant/backend/internal/metrics"
	"github.com/knowledge-assistant/backend/internal/storage/models"
	"github.com/knowledge-assistant/backend/pkg/apperrors"
	"github.com/knowledge-assistant/backend/pkg/logger"
	"github.com/knowledge-assistant/backend/pkg/utils"
)

var whitespacePattern = regexp.MustCompile(`\s+`)

type Store interface {
	GetTenant(ctx context.Context, tenantID int64) (*models.Tenant, error)
	FindDocumentByHash(ctx context.Context, tenantID int64, contentHash string) (*models.Document, error)
	InsertDocument(ctx context.Context, doc *models.Document) error
	InsertChunk(ctx context.Context, chunk *models.DocumentChunk) error
	SetDocumentChunkCount(ctx context.Context, documentID int64, count int) error
	GetDocument(ctx context.Context, tenantID, documentID int64) (*models.Document, error)
	ListDocuments(ctx context.Context, tenantID int64) ([]models.Document, error)
	SoftDeleteDocument(ctx context.Context, tenantID, documentID int64) error
	InsertAudit(ctx context.Context, audit *models.AuditLog) error
}

// VectorStore is the slice of the vector index the ingestion flow uses.
type VectorStore interface {
	UpsertChunks(ctx context.Context, tenantID, documentID int64, chunks []chunker.Chunk) ([]string, error)
	DeleteDocument(ctx context.Context, tenantID, documentID int64)
}

type Processor struct {
	store    Store
	vectors  VectorStore
	splitter *chunker.Splitter
}

type IngestRequest struct {
	Title       string
	Content     string
	Source      string
	ContentType string
}

func NewProcessor(store Store, vectors VectorStore, splitter *chunker.Splitter) *Processor {
	return &Processor{
		store:    store,
		vectors:  vectors,
		splitter: splitter,
	}
}

// Ingest creates the document record, chunks the content and indexes
// the chunks. A vector-store failure fails the call: the document row
// stays at chunk count 0 and is not treated as indexed.
func (p *Processor) Ingest(ctx context.Context, tenantID int64, req IngestRequest) (*models.Document, error) {
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("title and content are required: %w", apperrors.ErrValidation)
	}

	if _, err := p.store.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	content := req.Content
	if strings.EqualFold(req.ContentType, "html") {
		content = stripHTML(content)
		if content == "" {
			return nil, fmt.Errorf("no text extracted from HTML: %w", apperrors.ErrValidation)
		}
	}

	contentHash := utils.Fingerprint(content)

	existing, err := p.store.FindDocumentByHash(ctx, tenantID, contentHash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("document with identical content already exists (id %d): %w",
			existing.ID, apperrors.ErrConflict)
	}

	doc := &models.Document{
		TenantID:    tenantID,
		Title:       req.Title,
		Content:     content,
		Source:      req.Source,
		ContentHash: contentHash,
	}
	if err := p.store.InsertDocument(ctx, doc); err != nil {
		return nil, err
	}

	chunks := p.splitter.Split(content, req.Title)
	logger.Info("Document chunked",
		zap.Int64("tenant_id", tenantID),
		zap.Int64("document_id", doc.ID),
		zap.Int("chunks", len(chunks)),
	)

	vectorIDs, err := p.vectors.UpsertChunks(ctx, tenantID, doc.ID, chunks)
	if err != nil {
		// Roll back the row so a retry does not hit the duplicate check.
		if delErr := p.store.SoftDeleteDocument(ctx, tenantID, doc.ID); delErr != nil {
			logger.Error("Failed to roll back unindexed document",
				zap.Int64("tenant_id", tenantID),
				zap.Int64("document_id", doc.ID),
				zap.Error(delErr),
			)
		}
		return nil, fmt.Errorf("failed to index document %d: %w", doc.ID, err)
	}

	for i, chunk := range chunks {
		dbChunk := &models.DocumentChunk{
			DocumentID: doc.ID,
			TenantID:   tenantID,
			ChunkIndex: chunk.Index,
			Content:    chunk.Content,
			VectorID:   vectorIDs[i],
		}
		if err := p.store.InsertChunk(ctx, dbChunk); err != nil {
			return nil, err
		}
	}

	if err := p.store.SetDocumentChunkCount(ctx, doc.ID, len(chunks)); err != nil {
		return nil, err
	}
	doc.ChunkCount = len(chunks)

	if err := p.store.InsertAudit(ctx, &models.AuditLog{
		TenantID:   tenantID,
		Action:     "document_created",
		EntityType: "document",
		EntityID:   doc.ID,
		Details: map[string]interface{}{
			"title":  req.Title,
			"chunks": len(chunks),
		},
	}); err != nil {
		return nil, err
	}

	metrics.DocumentsIngested.Inc()
	metrics.ChunksIndexed.Add(float64(len(chunks)))

	logger.Info("Document ingested",
		zap.Int64("tenant_id", tenantID),
		zap.Int64("document_id", doc.ID),
		zap.Int("chunks", len(chunks)),
	)

	return doc, nil
}

// Delete soft-deletes the document and purges its vectors. The vector
// purge is best effort; the soft delete is not.
func (p *Processor) Delete(ctx context.Context, tenantID, documentID int64) error {
	if _, err := p.store.GetDocument(ctx, tenantID, documentID); err != nil {
		return err
	}

	p.vectors.DeleteDocument(ctx, tenantID, documentID)

	if err := p.store.SoftDeleteDocument(ctx, tenantID, documentID); err != nil {
		return err
	}

	if err := p.store.InsertAudit(ctx, &models.AuditLog{
		TenantID:   tenantID,
		Action:     "document_deleted",
		EntityType: "document",
		EntityID:   documentID,
	}); err != nil {
		return err
	}

	logger.Info("Document deleted",
		zap.Int64("tenant_id", tenantID),
		zap.Int64("document_id", documentID),
	)

	return nil
}

func (p *Processor) List(ctx context.Context, tenantID int64) ([]models.Document, error) {
	if _, err := p.store.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	return p.store.ListDocuments(ctx, tenantID)
}

// stripHTML extracts readable text from markup the way documents pasted
// from intranet pages arrive: drop chrome elements, keep body text.
func stripHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	text := doc.Find("body").Text()
	text = whitespacePattern.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}
