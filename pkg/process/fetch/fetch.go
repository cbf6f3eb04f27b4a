// Package fetch resolves data source components on the server by calling the
// injected Fetcher and storing the response at the component's path.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/components"
	"github.com/wehubfusion/Daedalus/pkg/evaluator"
	"github.com/wehubfusion/Daedalus/pkg/process"
)

// Name is the registry name of the stage.
const Name = "fetch"

// ProcessorInfo is the fetch stage. It calls a collaborator and therefore
// suspends.
var ProcessorInfo = process.ProcessorInfo{
	Name:          Name,
	ShouldProcess: ShouldProcess,
	Process:       Process,
	Suspends:      true,
}

// ShouldProcess applies to data sources configured to fetch on the server.
func ShouldProcess(c *process.Context) bool {
	comp := c.Component
	if comp == nil || comp.Kind() != components.KindDataSource || !comp.HasData() {
		return false
	}
	return comp.Fetch != nil && comp.Fetch.URL != "" && comp.Trigger != nil && comp.Trigger.Server
}

// Process performs the request and writes the mapped response value.
// Transport errors abort the run; non-2xx answers skip the stage.
func Process(ctx context.Context, c *process.Context) error {
	if c.Options == nil || c.Options.Fetcher == nil {
		return fmt.Errorf("%w: %s", process.ErrNoFetcher, c.Path)
	}

	req, err := BuildRequest(c)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.Options.Fetcher.Fetch(ctx, req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", req.URL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.Logger().Warn("fetch returned an error status",
			zap.String("url", req.URL),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("status %d from %s: %w", resp.StatusCode, req.URL, process.ErrSkipStage)
	}

	value := Extract(resp.Body, c.Component.Fetch.MapPath)
	if mapFn := c.Component.Fetch.MapFunction; mapFn != nil && mapFn != "" {
		mapped, err := c.Evaluate(ctx, mapFn, map[string]interface{}{
			"responseData": value,
			"value":        value,
		}, "value")
		if err != nil {
			return err
		}
		value = mapped
	}

	c.SetValue(value)
	c.Scope.Fetched = append(c.Scope.Fetched, process.PathValue{Path: c.Path, Value: value})
	return nil
}

// BuildRequest interpolates the component's fetch configuration against the
// node's evaluation context.
func BuildRequest(c *process.Context) (process.FetchRequest, error) {
	cfg := c.Component.Fetch
	evalCtx := c.BuildEvalContext()

	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodGet
	}
	req := process.FetchRequest{
		URL:    evaluator.Interpolate(cfg.URL, evalCtx),
		Method: method,
		Path:   c.Path,
	}

	if len(cfg.Headers) > 0 {
		req.Headers = make(map[string]string, len(cfg.Headers))
		for _, h := range cfg.Headers {
			if h.Key == "" {
				continue
			}
			req.Headers[h.Key] = evaluator.Interpolate(h.Value, evalCtx)
		}
	}

	switch body := cfg.Body.(type) {
	case nil:
	case string:
		if body != "" {
			req.Body = []byte(evaluator.Interpolate(body, evalCtx))
		}
	default:
		b, err := json.Marshal(body)
		if err != nil {
			return req, err
		}
		req.Body = b
	}
	return req, nil
}

var indexPattern = regexp.MustCompile(`\[(\d+)\]`)

// Extract decodes a response body, optionally narrowed to mapPath. Bodies
// that are not JSON are returned as text.
func Extract(body []byte, mapPath string) interface{} {
	if !gjson.ValidBytes(body) {
		return string(body)
	}
	if mapPath == "" {
		return gjson.ParseBytes(body).Value()
	}
	result := gjson.GetBytes(body, gjsonPath(mapPath))
	if !result.Exists() {
		return nil
	}
	return result.Value()
}

// gjsonPath converts a document path such as items[0].name to gjson syntax.
func gjsonPath(path string) string {
	path = strings.TrimPrefix(path, "/")
	path = strings.ReplaceAll(path, "/", ".")
	return indexPattern.ReplaceAllString(path, ".$1")
}
