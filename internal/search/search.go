// Package search provides title search over a user's accessible diagrams.
package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	OwnerEmail string `json:"ownerEmail"`
}

// Query describes a search request. UserID scopes results to diagrams the
// user owns or collaborates on.
type Query struct {
	Text   string
	UserID string
	Limit  int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Query   string   `json:"query"`
}

// Record is the data indexed for a diagram. Members holds the owner uid plus
// every collaborator uid so access filtering can happen inside the index.
type Record struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	OwnerEmail string   `json:"ownerEmail"`
	Members    []string `json:"members"`
}
