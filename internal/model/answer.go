package model

type AnswerStatus string

const (
	AnswerStatusOK          AnswerStatus = "ok"
	AnswerStatusNotFound    AnswerStatus = "not_found"
	AnswerStatusNoDocuments AnswerStatus = "no_documents"
)

type AnswerSource struct {
	Source   string  `json:"source"`
	Position int     `json:"position"`
	Score    float64 `json:"score"`
}

type Answer struct {
	Query   string         `json:"query"`
	Text    string         `json:"answer"`
	Status  AnswerStatus   `json:"status"`
	Sources []AnswerSource `json:"sources,omitempty"`
	Cached  bool           `json:"cached,omitempty"`
}

type IngestResult struct {
	Documents   int    `json:"documents"`
	ChunksAdded int    `json:"documents_added"`
	TotalChunks int    `json:"total_chunks"`
	Generation  uint64 `json:"generation"`
}

const (
	IndexStateUninitialized = "uninitialized"
	IndexStateReady         = "ready"
)

type IndexStatus struct {
	State         string       `json:"state"`
	Records       int          `json:"records"`
	Dimension     int          `json:"dimension"`
	EmbedModel    string       `json:"embed_model"`
	Generation    uint64       `json:"generation"`
	Store         string       `json:"store"`
	EmbedCache    *CacheStats  `json:"embed_cache,omitempty"`
	RecentIngests []*IngestLog `json:"recent_ingests,omitempty"`
}

type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}
