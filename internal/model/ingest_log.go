package model

type IngestLog struct {
	ID          string   `json:"id"`
	Sources     []string `json:"sources"`
	ChunksAdded int      `json:"chunks_added"`
	TotalChunks int      `json:"total_chunks"`
	Generation  uint64   `json:"generation"`
	EmbedModel  string   `json:"embed_model"`
	Ctime       int64    `json:"ctime"`
}
