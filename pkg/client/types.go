package client

import (
	"encoding/json"
	"fmt"
)

// Response is the answer of an inference endpoint. Bodies that are not
// JSON are kept verbatim; check Malformed before decoding.
type Response struct {
	StatusCode int
	Body       []byte

	// Cached is true when the body came from the response cache.
	Cached bool
}

// Malformed reports whether the body is not valid JSON.
func (r *Response) Malformed() bool {
	return !json.Valid(r.Body)
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if r.Malformed() {
		return fmt.Errorf("decode response: body is not JSON (%d bytes)", len(r.Body))
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// LabelEvaluation is the prediction of sentiment and classification models.
type LabelEvaluation struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// LabelResult is the sentiment and classification response.
type LabelResult struct {
	Body       string          `json:"body"`
	Evaluation LabelEvaluation `json:"evaluation"`
}

// Entity is one recognised named entity.
type Entity struct {
	Word   string  `json:"word"`
	Score  float64 `json:"score"`
	Entity string  `json:"entity"`
	Index  int     `json:"index"`
}

// EntityResult is the NER response. Evaluation is keyed by entity number.
type EntityResult struct {
	Body       string            `json:"body"`
	Evaluation map[string]Entity `json:"evaluation"`
}

// ZeroShotEvaluation scores every candidate label.
type ZeroShotEvaluation struct {
	Sequence string    `json:"sequence"`
	Labels   []string  `json:"labels"`
	Scores   []float64 `json:"scores"`
	Label    string    `json:"label"`
}

// ZeroShotResult is the zero-shot classification response.
type ZeroShotResult struct {
	Body       string             `json:"body"`
	Evaluation ZeroShotEvaluation `json:"evaluation"`
}

// AnswerEvaluation is the extracted answer of a question.
type AnswerEvaluation struct {
	Score  float64 `json:"score"`
	Answer string  `json:"answer"`
}

// AnswerResult is the question answering response.
type AnswerResult struct {
	Body       string           `json:"body"`
	Evaluation AnswerEvaluation `json:"evaluation"`
}

// SummaryResult is the summarization response.
type SummaryResult struct {
	Body       string `json:"body"`
	Evaluation struct {
		Summary string `json:"summary"`
	} `json:"evaluation"`
}
