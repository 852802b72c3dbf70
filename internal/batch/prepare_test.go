package batch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iamhimansu/template-repeater/internal/config"
	recordspkg "github.com/iamhimansu/template-repeater/internal/records"
	"github.com/iamhimansu/template-repeater/internal/repeater"
	"github.com/iamhimansu/template-repeater/internal/templating"
)

func TestPrepare(t *testing.T) {
	cfg := config.NewDefaultConfig().Template()

	t.Run("Defaults From Config", func(t *testing.T) {
		s, err := Prepare(Request{Template: labelTemplate}, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.True(t, s.IsInitialized())
		assert.Equal(t, repeater.Grid{Cols: 2, Rows: 2}, s.Limits())
		assert.Equal(t, "A4", s.Paper())
	})

	t.Run("Overrides", func(t *testing.T) {
		source := `<template id="labels" data-width="10" data-height="10"></template><p style="position:absolute;top:0;left:0">{{.name}}</p>`
		s, err := Prepare(Request{
			Template: source,
			Options:  map[string]any{"template_id": "labels", "paper": "Letter"},
			Engine:   templating.EngineGo,
		}, cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, "labels", s.Options().TemplateID)
		assert.Equal(t, "Letter", s.Paper())
		require.NoError(t, s.Push(map[string]any{"name": "go"}))
		assert.Contains(t, s.Content(), ">go</p>")
	})

	t.Run("Go Partials From Config", func(t *testing.T) {
		goCfg := cfg
		goCfg.Engine = templating.EngineGo
		goCfg.Partials = map[string]string{"sig": `<i>{{ printf "%s." .name }}</i>`}
		source := `<template id="h-template" data-width="10" data-height="10"></template>` +
			`<p style="position:absolute;top:0;left:0">{{ printf "%s!" .name }}{{ template "sig" . }}</p>`

		s, err := Prepare(Request{Template: source}, goCfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NoError(t, s.Push(map[string]any{"name": "Ada"}))
		assert.Contains(t, s.Content(), ">Ada!<i>Ada.</i></p>")
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := Prepare(Request{Template: labelTemplate, Options: map[string]any{"bogus": 1}}, cfg, nil)
		assert.ErrorIs(t, err, repeater.ErrPropertyNotFound)

		_, err = Prepare(Request{Template: labelTemplate, Engine: "twig"}, cfg, nil)
		assert.ErrorIs(t, err, templating.ErrUnknownEngine)

		_, err = Prepare(Request{Template: "  "}, cfg, nil)
		assert.ErrorIs(t, err, repeater.ErrEmptyTemplate)

		_, err = Prepare(Request{Template: "<div></div>"}, cfg, nil)
		assert.ErrorIs(t, err, repeater.ErrMetadataNodeNotFound)
	})
}

func TestJSONNumbersRenderPlain(t *testing.T) {
	recs, err := recordspkg.Decode(strings.NewReader(`[{"id": 1234567, "zip": 10001}]`), recordspkg.FormatJSON)
	require.NoError(t, err)

	source := `<template id="h-template" data-width="10" data-height="10"></template>` +
		`<p style="position:absolute;top:0;left:0">{{ id }}-{{ zip }}</p>`
	s, err := Prepare(Request{Template: source}, config.NewDefaultConfig().Template(), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, s.Push(recs[0]))
	assert.Contains(t, s.Content(), ">1234567-10001</p>")
}
