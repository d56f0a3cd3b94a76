package model

// Document is one uploaded file after text extraction.
type Document struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

type Chunk struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Position int    `json:"position"`
	Text     string `json:"text"`
}
