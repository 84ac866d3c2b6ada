package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Query describes a dashboard search request. AuthorID scopes results
// to the requesting author's own greetings.
type Query struct {
	Text     string
	AuthorID string
	Limit    int
	Offset   int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over greetings.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// GreetingRecord is the data indexed per greeting: title plus the
// plain-text projection, never the markup.
type GreetingRecord struct {
	ID       string `json:"id"`
	AuthorID string `json:"authorId"`
	Title    string `json:"title"`
	Text     string `json:"text"`
}
