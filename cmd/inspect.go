// File: cmd/inspect.go
package cmd

import (
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iamhimansu/template-repeater/internal/batch"
	"github.com/iamhimansu/template-repeater/internal/config"
	"github.com/iamhimansu/template-repeater/internal/metadata"
	"github.com/iamhimansu/template-repeater/internal/observability"
	"github.com/iamhimansu/template-repeater/internal/repeater"
)

// Inspection describes an initialized template.
type Inspection struct {
	Metadata    map[string]metadata.Entry `json:"metadata"`
	Pages       []PageInfo                `json:"pages"`
	Limits      repeater.Grid             `json:"limits"`
	Tile        repeater.Size             `json:"tile"`
	UsePages    bool                      `json:"use_pages"`
	Paper       string                    `json:"paper"`
	Orientation string                    `json:"orientation"`
}

// PageInfo describes one discovered page.
type PageInfo struct {
	Name        string  `json:"name"`
	Positioned  int     `json:"positioned"`
	InitialLeft float64 `json:"initial_left"`
}

func newInspectCmd() *cobra.Command {
	var templatePath string

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the layout metadata and pages of a template as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			return runInspect(observability.GetLogger(), cfg, templatePath, cmd.OutOrStdout())
		},
	}
	inspectCmd.Flags().StringVarP(&templatePath, "template", "t", "", "template HTML file (required)")
	inspectCmd.Flags().String("template-id", "", "id of the <template> metadata element")
	_ = inspectCmd.MarkFlagRequired("template")
	overrides(inspectCmd, "template-id", "template.id")
	return inspectCmd
}

func runInspect(logger *zap.Logger, cfg config.Interface, templatePath string, w io.Writer) error {
	source, err := readTemplate(templatePath)
	if err != nil {
		return err
	}
	session, err := batch.Prepare(batch.Request{Template: source}, cfg.Template(), logger)
	if err != nil {
		return err
	}

	out := Inspection{
		Metadata:    session.Metadata().Table(),
		Pages:       make([]PageInfo, 0, session.TotalPages()),
		Limits:      session.Limits(),
		Tile:        session.TileSize(),
		UsePages:    session.UsePages(),
		Paper:       session.Paper(),
		Orientation: session.Orientation(),
	}
	for _, p := range session.Pages() {
		out.Pages = append(out.Pages, PageInfo{Name: p.Name(), Positioned: p.Positioned(), InitialLeft: p.InitialLeft()})
	}

	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
