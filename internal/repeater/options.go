package repeater

import (
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

const (
	DefaultTemplateID = "h-template"
	DefaultPageBreak  = "<pagebreak></pagebreak>"
	DefaultPaper      = "A4"
)

// Options configures a Session.
type Options struct {
	// TemplateID is the id of the <template> element carrying the layout metadata.
	TemplateID string `mapstructure:"template_id" json:"template_id" yaml:"template_id"`
	// PageBreak separates page outputs in Content.
	PageBreak string `mapstructure:"page_break" json:"page_break" yaml:"page_break"`
	// Paper is reported when the template declares no data-paper.
	Paper string `mapstructure:"paper" json:"paper" yaml:"paper"`
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		TemplateID: DefaultTemplateID,
		PageBreak:  DefaultPageBreak,
		Paper:      DefaultPaper,
	}
}

// Validate rejects a blank template id.
func (o Options) Validate() error {
	if strings.TrimSpace(o.TemplateID) == "" {
		return newError(CodeInvalidOption, "template id cannot be blank")
	}
	return nil
}

var optionKeys = map[string]struct{}{
	"template_id": {},
	"page_break":  {},
	"paper":       {},
}

// DecodeOptions decodes a loosely typed option map over DefaultOptions. Unknown
// keys are rejected with ErrPropertyNotFound.
func DecodeOptions(raw map[string]any) (Options, error) {
	return DefaultOptions().Decode(raw)
}

// Decode returns a copy of o with the fields named in raw overwritten.
func (o Options) Decode(raw map[string]any) (Options, error) {
	opts := o
	if len(raw) == 0 {
		return opts, opts.Validate()
	}

	var unknown []string
	for key := range raw {
		if _, ok := optionKeys[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return opts, newError(CodePropertyNotFound, "options have no property named %s", strings.Join(unknown, ", "))
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &opts,
		ErrorUnused: true,
		TagName:     "mapstructure",
	})
	if err != nil {
		return opts, err
	}
	if err := decoder.Decode(raw); err != nil {
		return opts, wrapError(CodeInvalidOption, err, "invalid options")
	}
	return opts, opts.Validate()
}
