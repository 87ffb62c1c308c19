package dto

// QueryRequest keeps optional fields as pointers so an explicit zero is not
// mistaken for "use the default".
type QueryRequest struct {
	Query       string   `json:"query" validate:"required"`
	TopK        *int     `json:"top_k"`
	Source      string   `json:"source"`
	Generate    *bool    `json:"generate"`
	Temperature *float64 `json:"temperature"`
}

type QueryResult struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}

type CitationResponse struct {
	Index  int     `json:"index"`
	Source *string `json:"source"`
	Page   *int    `json:"page"`
	Score  float64 `json:"score"`
}

// QueryResponse carries Answer and Citations only when generation was requested.
type QueryResponse struct {
	Results   []QueryResult      `json:"results"`
	Answer    *string            `json:"answer,omitempty"`
	Citations []CitationResponse `json:"citations,omitempty"`
}
