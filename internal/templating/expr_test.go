package templating

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExprEngineRender(t *testing.T) {
	engine := NewExprEngine(true)
	data := map[string]any{
		"name":  "Ada",
		"qty":   3,
		"price": 2.5,
		"tags":  []any{"a", "b"},
		"html":  "<b>",
		"flag":  true,
		"id":    1234567.0,
		"zip":   float64(10001),
		"ratio": 0.000012,
	}

	tests := []struct {
		name     string
		source   string
		expected string
	}{
		{"Plain Text", "<p>static</p>", "<p>static</p>"},
		{"Variable", "<p>{{ name }}</p>", "<p>Ada</p>"},
		{"No Spaces", "{{name}}", "Ada"},
		{"Arithmetic", "{{ qty * price }}", "7.5"},
		{"Builtin", "{{ upper(name) }}", "ADA"},
		{"Pipe", "{{ tags | join(',') }}", "a,b"},
		{"Undefined Renders Empty", "[{{ missing }}]", "[]"},
		{"Comment Stripped", "a{# hidden #}b", "ab"},
		{"Escaped", "{{ html }}", "&lt;b&gt;"},
		{"True Renders One", "{{ flag }}", "1"},
		{"False Renders Empty", "[{{ !flag }}]", "[]"},
		{"Entities Unescaped", "{{ qty &gt; 2 ? &#34;many&#34; : &#34;few&#34; }}", "many"},
		{"Single Brace Kept", "a { b } c", "a { b } c"},
		{"Large Float Plain", "{{ id }}-{{ zip }}", "1234567-10001"},
		{"Small Float Plain", "{{ ratio }}", "0.000012"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := engine.Render(tt.source, data)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestExprEngineWithoutEscape(t *testing.T) {
	out, err := NewExprEngine(false).Render("{{ v }}", map[string]any{"v": "<i>x</i>"})
	require.NoError(t, err)
	assert.Equal(t, "<i>x</i>", out)
}

func TestExprEngineNilData(t *testing.T) {
	out, err := NewExprEngine(true).Render("<p>{{ anything }}</p>", nil)
	require.NoError(t, err)
	assert.Equal(t, "<p></p>", out)
}

func TestExprEngineStructData(t *testing.T) {
	type record struct {
		Name string
	}
	out, err := NewExprEngine(true).Render("{{ Name }}", record{Name: "Grace"})
	require.NoError(t, err)
	assert.Equal(t, "Grace", out)
}

func TestExprEngineErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		data   map[string]any
		kind   Kind
	}{
		{"Unclosed Placeholder", "<p>{{ name</p>", nil, KindSyntax},
		{"Unclosed Comment", "{# note", nil, KindSyntax},
		{"Empty Expression", "{{ }}", nil, KindSyntax},
		{"Bad Expression", "{{ a + }}", nil, KindSyntax},
		{"Runtime Failure", "{{ a % b }}", map[string]any{"a": 1, "b": 0}, KindRuntime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExprEngine(true).Render(tt.source, tt.data)
			require.Error(t, err)

			var terr *Error
			require.True(t, errors.As(err, &terr))
			assert.Equal(t, tt.kind, terr.Kind)
			assert.ErrorIs(t, err, ErrTemplating)
			assert.ErrorIs(t, err, &Error{Kind: tt.kind})
		})
	}
}

func TestExprEngineCachesPrograms(t *testing.T) {
	engine := NewExprEngine(true)
	for i := 0; i < 3; i++ {
		_, err := engine.Render("{{ n + 1 }}{{ n + 1 }}", map[string]any{"n": i})
		require.NoError(t, err)
	}
	assert.Len(t, engine.programs, 1)
}

func TestNew(t *testing.T) {
	e, err := New("", true, nil)
	require.NoError(t, err)
	assert.IsType(t, &ExprEngine{}, e)

	e, err = New("GO", false, map[string]string{"sig": "S"})
	require.NoError(t, err)
	require.IsType(t, &GoEngine{}, e)
	assert.Equal(t, "S", e.(*GoEngine).Partials["sig"])

	_, err = New("twig", true, nil)
	assert.ErrorIs(t, err, ErrUnknownEngine)
}
