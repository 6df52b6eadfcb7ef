package client

import (
	"fmt"
)

// OperationKind selects the remote endpoint a request is sent to.
type OperationKind string

const (
	Sentiment         OperationKind = "sentiment"
	NER               OperationKind = "ner"
	Classification    OperationKind = "classification"
	ZeroShot          OperationKind = "zero-shot"
	QuestionAnswering OperationKind = "question-answering"
	Summarization     OperationKind = "summarization"
	SpellCheck        OperationKind = "spell-check"
	Batch             OperationKind = "batch"
)

// DefaultDomain is the model domain used when the caller gives none.
const DefaultDomain = "general"

var endpoints = map[OperationKind]string{
	Sentiment:         "/sentiment-analysis",
	NER:               "/ner",
	Classification:    "/classification",
	ZeroShot:          "/zero-shot",
	QuestionAnswering: "/qa",
	Summarization:     "/summarize",
	SpellCheck:        "/spell-check",
	Batch:             "/arguments",
}

// Endpoint returns the fixed path for kind, or "" for an unknown kind.
func Endpoint(kind OperationKind) string {
	return endpoints[kind]
}

// Envelope is the JSON payload posted to an endpoint. The set of
// implementations is closed.
type Envelope interface {
	envelope()
}

// DomainEnvelope is the generic {body, domain} payload used by sentiment,
// NER, classification and spell-check.
type DomainEnvelope struct {
	Body   string `json:"body"`
	Domain string `json:"domain"`
}

// ZeroShotEnvelope carries comma separated candidate labels.
type ZeroShotEnvelope struct {
	Body       string `json:"body"`
	Categories string `json:"categories"`
}

// QuestionEnvelope asks a question about a context passage.
type QuestionEnvelope struct {
	Context  string `json:"context"`
	Question string `json:"question"`
}

// SummarizationEnvelope always serialises all four keys; unset sizes are null.
type SummarizationEnvelope struct {
	Body       string   `json:"body"`
	Percentage *float64 `json:"percentage"`
	Domain     string   `json:"domain"`
	WordCount  *int     `json:"word_count"`
}

// Argument is one work item of a batch.
type Argument struct {
	Body      string `json:"body"`
	ModelName string `json:"model_name"`
	Domain    string `json:"domain"`
}

// BatchEnvelope wraps one packet of arguments.
type BatchEnvelope struct {
	ArgList []Argument `json:"argList"`
}

func (DomainEnvelope) envelope()        {}
func (ZeroShotEnvelope) envelope()      {}
func (QuestionEnvelope) envelope()      {}
func (SummarizationEnvelope) envelope() {}
func (BatchEnvelope) envelope()         {}

// Params are the named request parameters. Strings count as present when
// non-empty, pointers when non-nil.
type Params struct {
	Body       string
	Domain     string
	Categories string
	Context    string
	Question   string
	Percentage *float64
	WordCount  *int
}

// BuildEnvelope selects the payload for p. Only the highest priority
// branch is honoured:
//
//  1. Percentage or WordCount: summarization
//  2. Categories: zero-shot
//  3. Question: question answering
//  4. Domain: generic {body, domain}
//
// Anything else fails with ErrInvalidRequest.
func BuildEnvelope(p Params) (Envelope, error) {
	switch {
	case p.Percentage != nil || p.WordCount != nil:
		return SummarizationEnvelope{
			Body:       p.Body,
			Percentage: p.Percentage,
			Domain:     p.Domain,
			WordCount:  p.WordCount,
		}, nil
	case p.Categories != "":
		return ZeroShotEnvelope{Body: p.Body, Categories: p.Categories}, nil
	case p.Question != "":
		return QuestionEnvelope{Context: p.Context, Question: p.Question}, nil
	case p.Domain != "":
		return DomainEnvelope{Body: p.Body, Domain: p.Domain}, nil
	default:
		return nil, &APIError{
			ErrorClass: ErrorClassInvalidRequest,
			Message:    "no percentage, word_count, categories, question or domain supplied",
		}
	}
}

// validateKind rejects operation kinds without an endpoint.
func validateKind(kind OperationKind) (string, error) {
	path := Endpoint(kind)
	if path == "" {
		return "", &APIError{
			ErrorClass: ErrorClassInvalidRequest,
			Message:    fmt.Sprintf("unknown operation %q", kind),
		}
	}
	return path, nil
}
