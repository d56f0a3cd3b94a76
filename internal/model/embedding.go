package model

// VectorRecord is the unit stored in the index: a chunk plus its embedding.
type VectorRecord struct {
	ChunkID  string    `json:"chunk_id"`
	Source   string    `json:"source"`
	Position int       `json:"position"`
	Text     string    `json:"text"`
	Vector   []float32 `json:"-"`
}

type SearchHit struct {
	Record VectorRecord `json:"record"`
	Score  float64      `json:"score"`
}
