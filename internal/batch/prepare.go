package batch

import (
	"go.uber.org/zap"

	"github.com/iamhimansu/template-repeater/internal/config"
	"github.com/iamhimansu/template-repeater/internal/repeater"
	"github.com/iamhimansu/template-repeater/internal/templating"
)

// Request describes one render job independently of where it came from.
type Request struct {
	Template string `json:"template" yaml:"template"`
	// Records are pushed in order, one tile each.
	Records []any `json:"records" yaml:"records"`
	// Options overrides the configured session options by key (template_id,
	// page_break, paper).
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
	// Engine overrides the configured engine when set.
	Engine string `json:"engine,omitempty" yaml:"engine,omitempty"`
}

// OptionsFrom maps the template configuration onto session options.
func OptionsFrom(cfg config.TemplateConfig) repeater.Options {
	return repeater.Options{TemplateID: cfg.ID, PageBreak: cfg.PageBreak, Paper: cfg.Paper}
}

// Prepare creates and initializes the session for req on top of cfg.
func Prepare(req Request, cfg config.TemplateConfig, logger *zap.Logger) (*repeater.Session, error) {
	opts, err := OptionsFrom(cfg).Decode(req.Options)
	if err != nil {
		return nil, err
	}

	name := req.Engine
	if name == "" {
		name = cfg.Engine
	}
	engine, err := templating.New(name, cfg.Escape, cfg.Partials)
	if err != nil {
		return nil, err
	}

	session, err := repeater.NewSession(req.Template, engine, opts, logger)
	if err != nil {
		return nil, err
	}
	if err := session.Init(); err != nil {
		return nil, err
	}
	return session, nil
}
