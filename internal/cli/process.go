package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/components"
	"github.com/wehubfusion/Daedalus/pkg/process"
	"github.com/wehubfusion/Daedalus/pkg/process/targets"
)

var errInvalidSubmission = errors.New("submission has validation errors")

type processOptions struct {
	cfgPath        string
	formPath       string
	submissionPath string
	target         string
	server         bool
	flat           bool
	language       string
	formID         string
	failOnErrors   bool
}

type processOutput struct {
	Data  map[string]interface{} `json:"data"`
	Scope *process.Scope         `json:"scope"`
	Error string                 `json:"error,omitempty"`
}

func newProcessCmd() *cobra.Command {
	opts := processOptions{target: targets.SubmissionTarget}
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run a target over a form and a submission and print the data and scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			var server *bool
			if cmd.Flags().Changed("server") {
				server = &opts.server
			}
			return runProcess(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), opts, server)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&opts.cfgPath, "config", "", "config yaml path")
	fs.StringVarP(&opts.formPath, "form", "f", "", "form definition JSON (components array or form object)")
	fs.StringVarP(&opts.submissionPath, "submission", "s", "-", "submission JSON, - for stdin")
	fs.StringVarP(&opts.target, "target", "t", targets.SubmissionTarget, "target to run (submission, evaluator)")
	fs.BoolVar(&opts.server, "server", false, "run as the server (overrides process.server)")
	fs.BoolVar(&opts.flat, "flat", false, "do not descend into nested components")
	fs.StringVar(&opts.language, "language", "", "BCP 47 language for locale-dependent normalization")
	fs.StringVar(&opts.formID, "form-id", "", "form id sent with unique checks")
	fs.BoolVar(&opts.failOnErrors, "fail-on-errors", false, "exit non-zero when validation errors are reported")
	_ = cmd.MarkFlagRequired("form")
	return cmd
}

func runProcess(ctx context.Context, stdin io.Reader, out io.Writer, opts processOptions, server *bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formJSON, err := readInput(opts.formPath, stdin)
	if err != nil {
		return fmt.Errorf("read form: %w", err)
	}
	list, err := components.Parse(formJSON)
	if err != nil {
		return fmt.Errorf("parse form: %w", err)
	}
	subJSON, err := readInput(opts.submissionPath, stdin)
	if err != nil {
		return fmt.Errorf("read submission: %w", err)
	}
	data, err := decodeSubmission(subJSON)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, opts.cfgPath)
	if err != nil {
		return err
	}
	defer a.close()

	processors, err := targets.Processors(targets.NewRegistry(), opts.target)
	if err != nil {
		return err
	}

	options := a.options
	if server != nil {
		options.Server = *server
	}
	if opts.language != "" {
		options.Language = opts.language
	}
	if opts.formID != "" {
		options.FormID = opts.formID
	}

	run := &process.Run{
		Components: list,
		Data:       data,
		Processors: processors,
		Flat:       opts.flat,
		Options:    &options,
	}
	scope, runErr := process.Process(ctx, run)

	result := processOutput{Data: run.Data, Scope: scope}
	if runErr != nil {
		result.Error = runErr.Error()
		a.logger.Error("Run failed", zap.Error(runErr))
		a.reporter.Capture(runErr, map[string]string{"target": opts.target, "runID": scope.RunID})
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}

	if runErr != nil {
		return runErr
	}
	if opts.failOnErrors && scope != nil && len(scope.Errors) > 0 {
		return fmt.Errorf("%w: %d", errInvalidSubmission, len(scope.Errors))
	}
	return nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("no path given")
	}
	if path == "-" {
		return io.ReadAll(stdin)
	}
	// #nosec G304 -- path is provided by a trusted flag.
	return os.ReadFile(path)
}

// decodeSubmission accepts a submission object ({"data": {...}}) or bare
// submission data.
func decodeSubmission(b []byte) (map[string]interface{}, error) {
	if len(strings.TrimSpace(string(b))) == 0 {
		return map[string]interface{}{}, nil
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse submission: %w", err)
	}
	if data, ok := doc["data"].(map[string]interface{}); ok {
		return data, nil
	}
	return doc, nil
}
