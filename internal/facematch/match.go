package facematch

// Engine matches query embeddings against rosters. The zero value is not
// usable, create it with NewEngine.
type Engine struct {
	tolerance float64
}

// NewEngine creates a matcher. A non-positive tolerance selects DefaultTolerance.
func NewEngine(tolerance float64) *Engine {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Engine{tolerance: tolerance}
}

// Tolerance returns the distance threshold in use.
func (e *Engine) Tolerance() float64 {
	return e.tolerance
}

// IsMatch reports whether dist is strictly below the tolerance.
func (e *Engine) IsMatch(dist float64) bool {
	return dist < e.tolerance
}

// Match compares every query against every roster entry.
// Matches are flattened in query order, then roster order. Count is always
// len(queries), an image with faces but no match is a valid result.
func (e *Engine) Match(queries [][]float32, roster []Entry) Result {
	result := Result{
		Count: len(queries),
		Faces: []Face{},
	}

	for qi, query := range queries {
		for _, entry := range roster {
			dist := EuclideanDistance(query, entry.Encoding)
			if !e.IsMatch(dist) {
				continue
			}
			result.Faces = append(result.Faces, Face{
				Query: qi,
				ID:    entry.ID,
				Dist:  dist,
			})
		}
	}

	return result
}
