package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultMongoSearchIndex = "vector_index"
	DefaultTextField        = "text"
	DefaultVectorField      = "embedding"

	// Atlas recommends scanning more candidates than the final limit.
	mongoCandidatesPerResult = 10

	mongoNamespaceNotFound = 26
)

// MongoIndexConfig names the Atlas search index and the document fields.
type MongoIndexConfig struct {
	SearchIndex string
	TextField   string
	VectorField string
}

// MongoIndex is a VectorIndex over a MongoDB Atlas collection with a
// vectorSearch index. Documents follow the LangChain layout: text and vector
// fields at the top level, every other top-level field is metadata.
type MongoIndex struct {
	coll *mongo.Collection
	cfg  MongoIndexConfig
}

func NewMongoIndex(coll *mongo.Collection, cfg MongoIndexConfig) *MongoIndex {
	if cfg.SearchIndex == "" {
		cfg.SearchIndex = DefaultMongoSearchIndex
	}
	if cfg.TextField == "" {
		cfg.TextField = DefaultTextField
	}
	if cfg.VectorField == "" {
		cfg.VectorField = DefaultVectorField
	}
	return &MongoIndex{coll: coll, cfg: cfg}
}

// SimilaritySearch runs $vectorSearch. Atlas reports cosine scores
// normalized to [0, 1].
func (m *MongoIndex) SimilaritySearch(ctx context.Context, vector []float32, opts SearchOptions) ([]ScoredDocument, error) {
	limit := opts.K
	if limit <= 0 {
		limit = DefaultTopK
	}

	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: m.cfg.SearchIndex},
			{Key: "path", Value: m.cfg.VectorField},
			{Key: "queryVector", Value: vector},
			{Key: "numCandidates", Value: limit * mongoCandidatesPerResult},
			{Key: "limit", Value: limit},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
	}
	if opts.MinScore != nil {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.D{
			{Key: "score", Value: bson.D{{Key: "$gte", Value: *opts.MinScore}}},
		}}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$project", Value: bson.D{
		{Key: m.cfg.VectorField, Value: 0},
	}}})

	cur, err := m.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, mongoIndexError("similarity search", err)
	}
	defer cur.Close(ctx)

	var docs []ScoredDocument
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, mongoIndexError("decode search result", err)
		}
		docs = append(docs, m.toScored(raw))
	}
	if err := cur.Err(); err != nil {
		return nil, mongoIndexError("similarity search", err)
	}
	return docs, nil
}

func (m *MongoIndex) toScored(raw bson.M) ScoredDocument {
	var d ScoredDocument
	d.Metadata = map[string]string{}
	for k, v := range raw {
		switch k {
		case "_id":
			d.ID = idString(v)
		case m.cfg.TextField:
			d.Text, _ = v.(string)
		case "score":
			d.Score = toFloat(v)
		case m.cfg.VectorField:
		default:
			d.Metadata[k] = fmt.Sprint(v)
		}
	}
	return d
}

func (m *MongoIndex) Insert(ctx context.Context, doc Document) error {
	fields := m.documentFields(doc)

	var err error
	if doc.ID == "" {
		_, err = m.coll.InsertOne(ctx, fields)
	} else {
		_, err = m.coll.ReplaceOne(ctx,
			bson.D{{Key: "_id", Value: doc.ID}},
			append(bson.D{{Key: "_id", Value: doc.ID}}, fields...),
			options.Replace().SetUpsert(true),
		)
	}
	if err != nil {
		return mongoIndexError("insert document", err)
	}
	return nil
}

// documentFields lays doc out as top-level fields. Metadata keys that collide
// with _id, the text or vector field, or the search score are dropped.
func (m *MongoIndex) documentFields(doc Document) bson.D {
	fields := bson.D{
		{Key: m.cfg.TextField, Value: doc.Text},
		{Key: m.cfg.VectorField, Value: doc.Embedding},
	}
	keys := make([]string, 0, len(doc.Metadata))
	for k := range doc.Metadata {
		switch k {
		case "_id", "score", m.cfg.TextField, m.cfg.VectorField:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, bson.E{Key: k, Value: doc.Metadata[k]})
	}
	return fields
}

// Describe checks that the collection exists and, on Atlas, reads the
// vector dimension from the search index definition.
func (m *MongoIndex) Describe(ctx context.Context) (IndexInfo, error) {
	info := IndexInfo{Name: m.coll.Name(), Backend: "mongodb"}

	names, err := m.coll.Database().ListCollectionNames(ctx, bson.D{{Key: "name", Value: m.coll.Name()}})
	if err != nil {
		return info, mongoIndexError("describe index", err)
	}
	if len(names) == 0 {
		return info, NewPipelineError(KindIndexNotFound, "describe index",
			fmt.Errorf("collection %s.%s does not exist", m.coll.Database().Name(), m.coll.Name()))
	}

	cur, err := m.coll.SearchIndexes().List(ctx, options.SearchIndexes().SetName(m.cfg.SearchIndex))
	if err != nil {
		// Not an Atlas deployment; the dimension stays unknown.
		return info, nil
	}
	defer cur.Close(ctx)

	var indexes []bson.M
	if err := cur.All(ctx, &indexes); err != nil {
		return info, nil
	}
	if len(indexes) == 0 {
		return info, NewPipelineError(KindIndexNotFound, "describe index",
			fmt.Errorf("search index %q not found", m.cfg.SearchIndex))
	}
	info.Dimension = vectorDimension(indexes[0], m.cfg.VectorField)
	return info, nil
}

// vectorDimension digs numDimensions for path out of a search index
// description: {latestDefinition: {fields: [{type: "vector", path, numDimensions}]}}.
func vectorDimension(index bson.M, path string) int {
	def, ok := index["latestDefinition"].(bson.M)
	if !ok {
		return 0
	}
	fields, ok := def["fields"].(bson.A)
	if !ok {
		return 0
	}
	for _, f := range fields {
		field, ok := f.(bson.M)
		if !ok || field["path"] != path {
			continue
		}
		return int(toFloat(field["numDimensions"]))
	}
	return 0
}

func mongoIndexError(op string, err error) error {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == mongoNamespaceNotFound {
		return NewPipelineError(KindIndexNotFound, op, err)
	}
	return NewPipelineError(KindIndexUnavailable, op, err)
}

func idString(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(v)
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}

var _ VectorIndex = (*MongoIndex)(nil)
