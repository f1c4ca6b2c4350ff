package models

import "time"

type Tenant struct {
	ID        int64
	Name      string
	Slug      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Document struct {
	ID          int64
	TenantID    int64
	Title       string
	Content     string
	Source      string
	ContentHash string
	ChunkCount  int
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type DocumentChunk struct {
	ID         int64
	DocumentID int64
	TenantID   int64
	ChunkIndex int
	Content    string
	VectorID   string
	CreatedAt  time.Time
}

// AIRequest is the durable record of an accepted question, keyed by the
// uuid generated for the request.
type AIRequest struct {
	ID            int64
	TenantID      int64
	RequestID     string
	Question      string
	ContextChunks []string
	PromptTokens  int
	CreatedAt     time.Time
}

type AIResult struct {
	ID               int64
	RequestID        string
	TenantID         int64
	Answer           string
	Sources          []string
	Confidence       string
	CompletionTokens int
	TotalTokens      int
	LatencyMS        int
	WasCached        bool
	CreatedAt        time.Time
}

type AuditLog struct {
	ID         int64
	TenantID   int64
	Action     string
	EntityType string
	EntityID   int64
	Details    map[string]interface{}
	CreatedAt  time.Time
}
