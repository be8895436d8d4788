package domain

// VectorSearchConfig describes the ANN indexes kept over dataset and record embeddings.
type VectorSearchConfig struct {
	Model                   string
	Dimensions              int
	Similarity              string
	FieldPath               string
	DatasetIndexName        string
	RecordIndexName         string
	NumCandidatesMultiplier int
	MinScore                float64
}

// DefaultVectorSearchConfig returns the settings used when configuration leaves them empty.
func DefaultVectorSearchConfig() VectorSearchConfig {
	return VectorSearchConfig{
		Model:                   "text-embedding-3-small",
		Dimensions:              1536,
		Similarity:              "cosine",
		FieldPath:               "embedding",
		DatasetIndexName:        "vector_search_datasets",
		RecordIndexName:         "vector_search_records",
		NumCandidatesMultiplier: 10,
		MinScore:                0.7,
	}
}
