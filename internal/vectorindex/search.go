package vectorindex

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ScoreField carries the similarity score between pipeline stages.
const ScoreField = "score"

// Search describes one similarity query.
type Search struct {
	Index               string
	Path                string
	Vector              []float32
	Limit               int
	CandidateMultiplier int
	// MinScore drops results below the threshold. Zero disables the stage.
	MinScore float64
	UserID   string
	// Scope narrows results below the tenant, e.g. to one dataset.
	Scope bson.D
	// Filter is a caller-supplied structural match.
	Filter bson.D
}

// Pipeline builds the similarity pipeline: nearest-neighbor search, score, threshold,
// scope, caller filter, then a separate tenant match the caller filter cannot widen.
// Score and vector are dropped from output.
func (s Search) Pipeline() mongo.Pipeline {
	multiplier := s.CandidateMultiplier
	if multiplier <= 0 {
		multiplier = 1
	}

	prefilter := bson.D{{Key: "user_id", Value: s.UserID}}
	prefilter = append(prefilter, s.Scope...)

	p := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: s.Index},
			{Key: "path", Value: s.Path},
			{Key: "queryVector", Value: s.Vector},
			{Key: "numCandidates", Value: s.Limit * multiplier},
			{Key: "limit", Value: s.Limit},
			{Key: "exact", Value: false},
			{Key: "filter", Value: prefilter},
		}}},
		{{Key: "$addFields", Value: bson.D{{Key: ScoreField, Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}}}}},
	}

	if s.MinScore > 0 {
		p = append(p, bson.D{{Key: "$match", Value: bson.D{{Key: ScoreField, Value: bson.D{{Key: "$gte", Value: s.MinScore}}}}}})
	}
	if len(s.Scope) > 0 {
		p = append(p, bson.D{{Key: "$match", Value: s.Scope}})
	}
	if len(s.Filter) > 0 {
		p = append(p, bson.D{{Key: "$match", Value: s.Filter}})
	}
	p = append(p,
		bson.D{{Key: "$match", Value: bson.D{{Key: "user_id", Value: s.UserID}}}},
		bson.D{{Key: "$project", Value: bson.D{{Key: ScoreField, Value: 0}, {Key: s.Path, Value: 0}}}},
	)
	return p
}
