package qdrant

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/knowledge-assistant/backend/internal/chunker"
	"github.com/knowledge-assistant/backend/internal/embedding"
	"github.com/knowledge-assistant/backend/pkg/logger"
)

// RetrievalHit is a typed retrieval result, built once at this boundary
// so payload maps never leak into the rest of the pipeline.
type RetrievalHit struct {
	Content       string
	DocumentID    int64
	DocumentTitle string
	ChunkIndex    int
	Score         float32
}

// Client stores and searches chunk vectors, one collection per tenant.
type Client struct {
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
	provider    embedding.Provider
	vectorDim   int
}

func NewClient(endpoint string, vectorDim int, provider embedding.Provider) (*Client, error) {
	conn, err := grpc.Dial(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	logger.Info("Qdrant client initialized",
		zap.String("endpoint", endpoint),
		zap.Int("vector_dim", vectorDim),
	)

	return &Client{
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		provider:    provider,
		vectorDim:   vectorDim,
	}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func collectionName(tenantID int64) string {
	return fmt.Sprintf("tenant_%d", tenantID)
}

func (c *Client) collectionExists(ctx context.Context, name string) (bool, error) {
	resp, err := c.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("failed to list collections: %w", err)
	}

	for _, col := range resp.GetCollections() {
		if col.GetName() == name {
			return true, nil
		}
	}
	return false, nil
}

// EnsureCollection creates the tenant's collection if missing. Safe to
// call on every ingestion.
func (c *Client) EnsureCollection(ctx context.Context, tenantID int64) error {
	name := collectionName(tenantID)

	exists, err := c.collectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = c.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(c.vectorDim),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	logger.Info("Collection created", zap.String("collection", name))
	return nil
}

// UpsertChunks embeds and stores the chunks, returning one generated
// vector id per chunk in input order. Repeated calls with the same
// chunks create duplicate points; re-ingestion must delete first.
func (c *Client) UpsertChunks(ctx context.Context, tenantID, documentID int64, chunks []chunker.Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	if err := c.EnsureCollection(ctx, tenantID); err != nil {
		return nil, err
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := c.provider.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}

	points := make([]*pb.PointStruct, len(chunks))
	vectorIDs := make([]string, len(chunks))
	for i, chunk := range chunks {
		vectorID := uuid.New().String()
		vectorIDs[i] = vectorID

		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: vectorID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: vectors[i]},
				},
			},
			Payload: map[string]*pb.Value{
				"tenant_id":      {Kind: &pb.Value_IntegerValue{IntegerValue: tenantID}},
				"document_id":    {Kind: &pb.Value_IntegerValue{IntegerValue: documentID}},
				"chunk_index":    {Kind: &pb.Value_IntegerValue{IntegerValue: int64(chunk.Index)}},
				"content":        {Kind: &pb.Value_StringValue{StringValue: chunk.Content}},
				"document_title": {Kind: &pb.Value_StringValue{StringValue: chunk.DocumentTitle}},
			},
		}
	}

	_, err = c.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collectionName(tenantID),
		Points:         points,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert points: %w", err)
	}

	logger.Info("Chunks indexed",
		zap.Int64("tenant_id", tenantID),
		zap.Int64("document_id", documentID),
		zap.Int("count", len(points)),
	)

	return vectorIDs, nil
}

// Search returns up to topK hits at or above the similarity threshold,
// ordered by descending score with ties broken by ascending chunk index
// then document id. A tenant without a collection gets an empty result,
// not an error. The tenant filter is redundant with the per-tenant
// collection and kept as defense in depth.
func (c *Client) Search(ctx context.Context, tenantID int64, query string, topK int, scoreThreshold float32) ([]RetrievalHit, error) {
	name := collectionName(tenantID)

	exists, err := c.collectionExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		logger.Debug("No collection for tenant", zap.Int64("tenant_id", tenantID))
		return nil, nil
	}

	vector, err := c.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	resp, err := c.points.Search(ctx, &pb.SearchPoints{
		CollectionName: name,
		Vector:         vector,
		Limit:          uint64(topK),
		ScoreThreshold: &scoreThreshold,
		Filter: &pb.Filter{
			Must: []*pb.Condition{
				{
					ConditionOneOf: &pb.Condition_Field{
						Field: &pb.FieldCondition{
							Key: "tenant_id",
							Match: &pb.Match{
								MatchValue: &pb.Match_Integer{Integer: tenantID},
							},
						},
					},
				},
			},
		},
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	hits := make([]RetrievalHit, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		payload := point.GetPayload()
		hits = append(hits, RetrievalHit{
			Content:       payload["content"].GetStringValue(),
			DocumentID:    payload["document_id"].GetIntegerValue(),
			DocumentTitle: payload["document_title"].GetStringValue(),
			ChunkIndex:    int(payload["chunk_index"].GetIntegerValue()),
			Score:         point.GetScore(),
		})
	}

	SortHits(hits)

	logger.Debug("Vector search completed",
		zap.Int64("tenant_id", tenantID),
		zap.Int("hits", len(hits)),
	)

	return hits, nil
}

// SortHits orders by descending score, then ascending chunk index, then
// document id, so equal-score results are stable across runs.
func SortHits(hits []RetrievalHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].ChunkIndex != hits[j].ChunkIndex {
			return hits[i].ChunkIndex < hits[j].ChunkIndex
		}
		return hits[i].DocumentID < hits[j].DocumentID
	})
}

// DeleteDocument purges a document's vectors. Best effort: cleanup is
// off the critical path of deletion, so failures are only logged.
func (c *Client) DeleteDocument(ctx context.Context, tenantID, documentID int64) {
	name := collectionName(tenantID)

	_, err := c.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: name,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{
						{
							ConditionOneOf: &pb.Condition_Field{
								Field: &pb.FieldCondition{
									Key: "document_id",
									Match: &pb.Match{
										MatchValue: &pb.Match_Integer{Integer: documentID},
									},
								},
							},
						},
					},
				},
			},
		},
	})
	if err != nil {
		logger.Error("Failed to delete document vectors",
			zap.Int64("tenant_id", tenantID),
			zap.Int64("document_id", documentID),
			zap.Error(err),
		)
		return
	}

	logger.Info("Document vectors deleted",
		zap.Int64("tenant_id", tenantID),
		zap.Int64("document_id", documentID),
	)
}

func (c *Client) HealthCheck(ctx context.Context) bool {
	_, err := c.collections.List(ctx, &pb.ListCollectionsRequest{})
	return err == nil
}
