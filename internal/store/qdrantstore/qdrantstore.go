// Package qdrantstore implements store.ChunkStore over Qdrant, grounded on
// the teacher's internal/vector/qdrant adapter and reshaped around
// CodeChunk instead of a generic Document.
package qdrantstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sourcelens/coderag/internal/models"
	"github.com/sourcelens/coderag/internal/store"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// Store implements store.ChunkStore using Qdrant's gRPC points API.
type Store struct {
	conn       *grpc.ClientConn
	points     pb.PointsClient
	collection string
}

// New dials Qdrant and returns a chunk store bound to collection. The
// collection is expected to already exist with the deployment's fixed
// embedding dimensionality and cosine distance metric (spec §6.3);
// provisioning it is outside this package's responsibility.
func New(host string, port int, collection string) (*Store, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &Store{
		conn:       conn,
		points:     pb.NewPointsClient(conn),
		collection: collection,
	}, nil
}

func chunkPayload(c models.CodeChunk) (map[string]*pb.Value, error) {
	metaJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return nil, err
	}
	createdAt := c.CreatedAt.Format("2006-01-02T15:04:05.999999999Z07:00")
	return map[string]*pb.Value{
		"repositoryId": {Kind: &pb.Value_StringValue{StringValue: c.RepositoryID}},
		"filePath":     {Kind: &pb.Value_StringValue{StringValue: c.FilePath}},
		"fileName":     {Kind: &pb.Value_StringValue{StringValue: c.FileName}},
		"language":     {Kind: &pb.Value_StringValue{StringValue: c.Language}},
		"content":      {Kind: &pb.Value_StringValue{StringValue: c.Content}},
		"startLine":    {Kind: &pb.Value_IntegerValue{IntegerValue: int64(c.StartLine)}},
		"endLine":      {Kind: &pb.Value_IntegerValue{IntegerValue: int64(c.EndLine)}},
		"chunkType":    {Kind: &pb.Value_StringValue{StringValue: string(c.ChunkType)}},
		"symbolName":   {Kind: &pb.Value_StringValue{StringValue: c.SymbolName}},
		"metadata":     {Kind: &pb.Value_StringValue{StringValue: string(metaJSON)}},
		"createdAt":    {Kind: &pb.Value_StringValue{StringValue: createdAt}},
	}, nil
}

func chunkFromPayload(id string, payload map[string]*pb.Value, embedding []float32) models.CodeChunk {
	c := models.CodeChunk{
		ID:           id,
		RepositoryID: payload["repositoryId"].GetStringValue(),
		FilePath:     payload["filePath"].GetStringValue(),
		FileName:     payload["fileName"].GetStringValue(),
		Language:     payload["language"].GetStringValue(),
		Content:      payload["content"].GetStringValue(),
		StartLine:    int(payload["startLine"].GetIntegerValue()),
		EndLine:      int(payload["endLine"].GetIntegerValue()),
		ChunkType:    models.ChunkType(payload["chunkType"].GetStringValue()),
		SymbolName:   payload["symbolName"].GetStringValue(),
		Embedding:    embedding,
	}
	if raw := payload["metadata"].GetStringValue(); raw != "" {
		_ = json.Unmarshal([]byte(raw), &c.Metadata)
	}
	if raw := payload["createdAt"].GetStringValue(); raw != "" {
		c.CreatedAt, _ = parseTime(raw)
	}
	return c
}

func (s *Store) Upsert(ctx context.Context, chunk models.CodeChunk) error {
	return s.BulkUpsert(ctx, []models.CodeChunk{chunk})
}

func (s *Store) BulkUpsert(ctx context.Context, chunks []models.CodeChunk) error {
	points := make([]*pb.PointStruct, len(chunks))
	for i, c := range chunks {
		payload, err := chunkPayload(c)
		if err != nil {
			return fmt.Errorf("qdrantstore: encode payload for %s: %w", c.ID, err)
		}
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: c.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: c.Embedding}}},
			Payload: payload,
		}
	}

	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrantstore: upsert: %w", err)
	}
	return nil
}

func repositoryFilter(repositoryID string) *pb.Filter {
	return &pb.Filter{
		Must: []*pb.Condition{{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key:   "repositoryId",
					Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: repositoryID}},
				},
			},
		}},
	}
}

// DeleteByRepository removes the repository's partition with a single
// filter-based delete request; it does not enumerate points one by one.
// Callers still treat it as best-effort, as the ChunkStore contract allows.
func (s *Store) DeleteByRepository(ctx context.Context, repositoryID string) error {
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: repositoryFilter(repositoryID)},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrantstore: delete by repository: %w", err)
	}
	return nil
}

func (s *Store) QueryByRepository(ctx context.Context, repositoryID string) ([]models.CodeChunk, error) {
	var out []models.CodeChunk
	var offset *pb.PointId
	for {
		resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: s.collection,
			Filter:         repositoryFilter(repositoryID),
			Offset:         offset,
			Limit:          uint32Ptr(256),
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
			WithVectors:    &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true}},
		})
		if err != nil {
			return nil, fmt.Errorf("qdrantstore: scroll: %w", err)
		}
		for _, pt := range resp.Result {
			out = append(out, chunkFromPayload(pt.Id.GetUuid(), pt.Payload, vectorOf(pt.Vectors)))
		}
		if resp.NextPageOffset == nil || len(resp.Result) == 0 {
			break
		}
		offset = resp.NextPageOffset
	}
	return out, nil
}

// VectorTopK returns the K chunks minimizing cosine distance to
// queryEmbedding within repositoryID, in ascending distance order (spec
// §4.2). Qdrant's Search returns similarity scores in descending order for
// the collection's configured cosine metric; distance is reported as
// 1-score so callers get a monotonically increasing "closer is smaller"
// value regardless of the underlying metric's orientation.
func (s *Store) VectorTopK(ctx context.Context, repositoryID string, queryEmbedding []float32, k int) ([]store.ScoredChunk, error) {
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         queryEmbedding,
		Filter:         repositoryFilter(repositoryID),
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		WithVectors:    &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrantstore: search: %w", err)
	}

	out := make([]store.ScoredChunk, len(resp.Result))
	for i, pt := range resp.Result {
		chunk := chunkFromPayload(pt.Id.GetUuid(), pt.Payload, vectorOf(pt.Vectors))
		out[i] = store.ScoredChunk{Chunk: chunk, Distance: 1 - pt.Score}
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func vectorOf(v *pb.VectorsOutput) []float32 {
	if v == nil {
		return nil
	}
	if dense := v.GetVector(); dense != nil {
		return dense.GetData()
	}
	return nil
}

func uint32Ptr(v uint32) *uint32 {
	return &v
}

var _ store.ChunkStore = (*Store)(nil)
