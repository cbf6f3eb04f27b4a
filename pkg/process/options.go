package process

import (
	"context"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/evaluator"
)

// Evaluator evaluates rule expressions. *evaluator.Evaluator implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, expr interface{}, evalCtx map[string]interface{}, outputKey string) (interface{}, error)
}

// FetchRequest is a request issued by the fetch stage.
type FetchRequest struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`
	// Path is the data path the response will be written to.
	Path string `json:"path"`
}

// FetchResponse is the collaborator's answer to a FetchRequest.
type FetchResponse struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       []byte            `json:"body"`
}

// Fetcher performs remote data fetches on behalf of the pipeline.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (*FetchResponse, error)
}

// UniqueQuery asks whether a value is unique for a form field.
type UniqueQuery struct {
	Form  string      `json:"form,omitempty"`
	Path  string      `json:"path"`
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// UniqueChecker answers UniqueQuery requests, typically against stored submissions.
type UniqueChecker interface {
	IsUnique(ctx context.Context, q UniqueQuery) (bool, error)
}

// Options carries run-wide settings and collaborators.
type Options struct {
	// Server is true when running on the server (gates calculateServer).
	Server bool
	// Language is the BCP 47 tag used for locale-dependent normalization.
	Language string
	// FormID identifies the form in unique queries.
	FormID string

	Logger        *zap.Logger
	Evaluator     Evaluator
	Fetcher       Fetcher
	UniqueChecker UniqueChecker
}

func (o *Options) logger() *zap.Logger {
	if o == nil || o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o *Options) evaluator() Evaluator {
	if o == nil || o.Evaluator == nil {
		return evaluator.Default()
	}
	return o.Evaluator
}

func (o *Options) evalMap() map[string]interface{} {
	if o == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}{
		"server":   o.Server,
		"language": o.Language,
	}
}
