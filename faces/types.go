package faces

import "encoding/json"

type (
	EmbeddingRequest struct {
		ImageURLs     []string `json:"image_urls"`
		EmbeddingFile string   `json:"embedding_file"`
	}
	Response struct {
		StatusCode int
		Body       []byte
	}
	Match struct {
		URL   string  `json:"url"`
		Score float64 `json:"score"`
	}
	MatchResult struct {
		MatchCount int     `json:"match_count"`
		Matches    []Match `json:"matches"`
	}
)

// JSON returns the body as raw JSON, or null when the service sent nothing usable
func (r *Response) JSON() json.RawMessage {
	if len(r.Body) == 0 || !json.Valid(r.Body) {
		return json.RawMessage("null")
	}
	return json.RawMessage(r.Body)
}
