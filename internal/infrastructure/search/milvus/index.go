package milvus

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/turtacn/EquityLens/internal/analysis/similarity"
	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EquityLens/pkg/errors"
	"github.com/turtacn/EquityLens/pkg/types/common"
)

const (
	fieldReportID  = "report_id"
	fieldEmbedding = "embedding"

	reportIDMaxLength = 64
	ivfNlist          = 128
	ivfNprobe         = 16
)

// VectorIndex is the Milvus-backed similarity.VectorBackend.  One instance
// serves one embedding model's namespace; its collection is created and
// loaded on first use.
type VectorIndex struct {
	client     *Client
	collection string
	dimension  int
	log        logging.Logger
}

// NewVectorIndex ensures the collection for the given model exists, is
// indexed and loaded, and returns the backend bound to it.
func NewVectorIndex(ctx context.Context, c *Client, modelID string, dimension int, log logging.Logger) (*VectorIndex, error) {
	if dimension <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "vector dimension must be positive")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	idx := &VectorIndex{
		client:     c,
		collection: c.prefix + collectionSuffix(modelID),
		dimension:  dimension,
		log:        log,
	}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

// collectionSuffix maps a model ID onto Milvus collection-name rules.
func collectionSuffix(modelID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, modelID)
}

func (v *VectorIndex) ensureCollection(ctx context.Context) error {
	has, err := v.client.mc.HasCollection(ctx, v.collection)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to check milvus collection")
	}
	if !has {
		schema := &entity.Schema{
			CollectionName: v.collection,
			Description:    "report embeddings",
			Fields: []*entity.Field{
				entity.NewField().WithName(fieldReportID).
					WithDataType(entity.FieldTypeVarChar).
					WithMaxLength(reportIDMaxLength).
					WithIsPrimaryKey(true),
				entity.NewField().WithName(fieldEmbedding).
					WithDataType(entity.FieldTypeFloatVector).
					WithDim(int64(v.dimension)),
			},
		}
		err := v.client.mc.CreateCollection(ctx, schema, 1,
			client.WithConsistencyLevel(entity.ClStrong))
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeExternalService, "failed to create milvus collection")
		}

		vecIdx, err := entity.NewIndexIvfFlat(entity.COSINE, ivfNlist)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to build milvus index descriptor")
		}
		if err := v.client.mc.CreateIndex(ctx, v.collection, fieldEmbedding, vecIdx, false); err != nil {
			return errors.Wrap(err, errors.ErrCodeExternalService, "failed to create milvus index")
		}
		v.log.Info("created milvus collection",
			logging.String("collection", v.collection),
			logging.Int("dimension", v.dimension),
		)
	}

	if err := v.client.mc.LoadCollection(ctx, v.collection, false); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to load milvus collection")
	}
	return nil
}

// Insert upserts a report vector.
func (v *VectorIndex) Insert(ctx context.Context, id common.ID, vec similarity.Vector) error {
	if len(vec) != v.dimension {
		return errors.New(errors.ErrCodeDimensionMismatch,
			fmt.Sprintf("index dimension %d, vector dimension %d", v.dimension, len(vec)))
	}
	_, err := v.client.mc.Upsert(ctx, v.collection, "",
		entity.NewColumnVarChar(fieldReportID, []string{string(id)}),
		entity.NewColumnFloatVector(fieldEmbedding, v.dimension, [][]float32{vec}),
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to upsert vector")
	}
	return nil
}

// Search returns the nearest neighbours by cosine similarity.  The strong
// consistency level makes vectors from concurrent writers visible, which the
// second search after insert relies on.
func (v *VectorIndex) Search(ctx context.Context, vec similarity.Vector, topK int) ([]similarity.Neighbor, error) {
	if len(vec) != v.dimension {
		return nil, errors.New(errors.ErrCodeDimensionMismatch,
			fmt.Sprintf("index dimension %d, query dimension %d", v.dimension, len(vec)))
	}
	if topK <= 0 {
		topK = v.client.topK
	}

	sp, err := entity.NewIndexIvfFlatSearchParam(ivfNprobe)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build milvus search params")
	}
	results, err := v.client.mc.Search(ctx, v.collection, nil, "",
		[]string{fieldReportID},
		[]entity.Vector{entity.FloatVector(vec)},
		fieldEmbedding, entity.COSINE, topK, sp,
		client.WithSearchQueryConsistencyLevel(entity.ClStrong),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSimilaritySearchFail, "milvus search failed")
	}

	var neighbors []similarity.Neighbor
	for _, res := range results {
		ids, ok := res.IDs.(*entity.ColumnVarChar)
		if !ok {
			return nil, errors.New(errors.ErrCodeInternal, "unexpected milvus id column type")
		}
		for i, rid := range ids.Data() {
			neighbors = append(neighbors, similarity.Neighbor{
				ReportID: common.ID(rid),
				Score:    float64(res.Scores[i]),
			})
		}
	}
	return neighbors, nil
}

// Fetch returns the stored vector of a report.
func (v *VectorIndex) Fetch(ctx context.Context, id common.ID) (similarity.Vector, bool, error) {
	rs, err := v.client.mc.QueryByPks(ctx, v.collection, nil,
		entity.NewColumnVarChar(fieldReportID, []string{string(id)}),
		[]string{fieldEmbedding},
	)
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeExternalService, "failed to fetch vector")
	}
	for _, col := range rs {
		fv, ok := col.(*entity.ColumnFloatVector)
		if !ok || fv.Name() != fieldEmbedding {
			continue
		}
		data := fv.Data()
		if len(data) == 0 {
			return nil, false, nil
		}
		return similarity.Vector(data[0]), true, nil
	}
	return nil, false, nil
}

// Size returns the approximate number of stored vectors.  Milvus statistics
// lag flushes slightly, which the analyzer tolerates.
func (v *VectorIndex) Size(ctx context.Context) (int, error) {
	stats, err := v.client.mc.GetCollectionStatistics(ctx, v.collection)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeExternalService, "failed to read milvus statistics")
	}
	n, err := strconv.Atoi(stats["row_count"])
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternal, "malformed milvus row_count")
	}
	return n, nil
}
