package vectorstore

import "errors"

// ErrDimensionMismatch is returned when a vector does not match the index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Match is one search result: the row of a stored vector and its inner product with the query.
type Match struct {
	Row   int
	Score float64
}

// Index holds unit vectors and answers exact nearest-neighbour queries by inner product.
// Implementations are read-only once built.
type Index interface {
	Dimension() int
	Len() int
	Search(query []float64, k int) []Match
}
