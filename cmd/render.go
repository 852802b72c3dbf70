// File: cmd/render.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iamhimansu/template-repeater/internal/batch"
	"github.com/iamhimansu/template-repeater/internal/config"
	"github.com/iamhimansu/template-repeater/internal/observability"
	"github.com/iamhimansu/template-repeater/internal/records"
)

type renderOptions struct {
	templatePath string
	dataPath     string
	format       string
	stdout       bool
}

func newRenderCmd() *cobra.Command {
	var opts renderOptions

	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Render data records into tiled HTML sheets",
		Long: `Loads a template and a record file, places one tile per record on the
template's grid and writes every full sheet as soon as it fills up. Records that
do not fill the last sheet are written as a final partial sheet.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			return runRender(cmd.Context(), observability.GetLogger(), cfg, opts, cmd.OutOrStdout())
		},
	}

	flags := renderCmd.Flags()
	flags.StringVarP(&opts.templatePath, "template", "t", "", "template HTML file (required)")
	flags.StringVarP(&opts.dataPath, "data", "d", "", "record file: .json, .ndjson/.jsonl or .yaml/.yml (required)")
	flags.StringVar(&opts.format, "format", "", "record format, overriding the file extension")
	flags.BoolVar(&opts.stdout, "stdout", false, "write sheets to stdout, one per line")
	flags.StringP("out", "o", "", "output directory")
	flags.String("engine", "", "template engine: expr or go")
	flags.String("template-id", "", "id of the <template> metadata element")
	flags.String("page-break", "", "markup inserted between pages of a sheet")
	flags.Bool("minify", false, "minify written sheets")
	_ = renderCmd.MarkFlagRequired("template")
	_ = renderCmd.MarkFlagRequired("data")

	overrides(renderCmd, "out", "output.dir")
	overrides(renderCmd, "engine", "template.engine")
	overrides(renderCmd, "template-id", "template.id")
	overrides(renderCmd, "page-break", "template.page_break")
	overrides(renderCmd, "minify", "output.minify")
	return renderCmd
}

// runRender contains the testable core of the render command.
func runRender(ctx context.Context, logger *zap.Logger, cfg config.Interface, opts renderOptions, stdout io.Writer) error {
	source, err := readTemplate(opts.templatePath)
	if err != nil {
		return err
	}
	recs, err := loadRecords(opts.dataPath, opts.format)
	if err != nil {
		return err
	}
	logger.Info("Rendering", zap.String("template", opts.templatePath), zap.Int("records", len(recs)))

	session, err := batch.Prepare(batch.Request{Template: source, Records: recs}, cfg.Template(), logger)
	if err != nil {
		return fmt.Errorf("failed to prepare template: %w", err)
	}

	out := cfg.Output()
	var sink batch.Sink
	if opts.stdout || out.Dir == "stdout" {
		sink = &batch.WriterSink{W: stdout, Minify: out.Minify}
	} else if sink, err = batch.NewFileSink(out.Dir, out.Pattern, out.Minify); err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			logger.Warn("Failed to close output", zap.Error(cerr))
		}
	}()

	summary, err := batch.Run(ctx, session, recs, sink.Write, logger)
	if err != nil {
		return fmt.Errorf("render stopped after %d sheets: %w", summary.Sheets, err)
	}
	if fs, ok := sink.(*batch.FileSink); ok {
		logger.Info("Sheets written", zap.String("dir", fs.Dir), zap.Strings("files", fs.Written()))
	}
	return nil
}

func readTemplate(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("failed to expand template path %q: %w", path, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return "", fmt.Errorf("failed to read template: %w", err)
	}
	return string(data), nil
}

func loadRecords(path, format string) ([]any, error) {
	if format == "" {
		return records.Load(path)
	}
	f, err := records.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand records path %q: %w", path, err)
	}
	file, err := os.Open(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to open records file: %w", err)
	}
	defer file.Close()
	return records.Decode(file, f)
}
