package models

// RetrievalResult is a chunk with the similarity it scored for one query.
// Similarity is in (0,1] and only meaningful relative to other results of the same query.
type RetrievalResult struct {
	Chunk
	Similarity float64 `json:"similarity"`
}

// SearchResponse is the response for a retrieval request.
// An empty Results list means nothing relevant enough was found; it is not an error.
type SearchResponse struct {
	Query     string            `json:"query"`
	K         int               `json:"k"`
	Threshold float64           `json:"threshold"`
	Results   []RetrievalResult `json:"results"`
	Total     int               `json:"total"`
	QueryTime int64             `json:"query_time_ms"`
	Debug     *DebugInfo        `json:"debug_info,omitempty"`
}

// DebugInfo summarizes a retrieval for operators: how many results survived and the top few scores.
type DebugInfo struct {
	NumChunksRetrieved int       `json:"num_chunks_retrieved"`
	SimilarityScores   []float64 `json:"similarity_scores"`
	Sources            []string  `json:"sources"`
}

// Sources returns the distinct sources of results in rank order.
func (r *SearchResponse) Sources() []string {
	seen := make(map[string]bool)
	var out []string
	for _, res := range r.Results {
		if !seen[res.Source] {
			seen[res.Source] = true
			out = append(out, res.Source)
		}
	}
	return out
}
