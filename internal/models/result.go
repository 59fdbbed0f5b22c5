package models

// QueryResult is a single nearest-neighbour hit. Results are ordered ascending by Distance.
type QueryResult struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Distance float64  `json:"distance"`
}

// Source identifies the context at position Index passed to the composer.
type Source struct {
	Index    int     `json:"index"`
	Distance float64 `json:"distance"`
}

// Answer is the response of the ask boundary.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}
