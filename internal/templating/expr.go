package templating

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExprEngine renders Twig-style templates: `{{ expression }}` placeholders are
// evaluated with expr-lang against the record and `{# ... #}` comments are dropped.
// Variables missing from the record evaluate to nil and render as "".
type ExprEngine struct {
	Escape bool

	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// NewExprEngine returns an ExprEngine. When escape is set, rendered values are
// HTML-escaped.
func NewExprEngine(escape bool) *ExprEngine {
	return &ExprEngine{Escape: escape, programs: make(map[string]*vm.Program)}
}

// Render implements Engine.
func (e *ExprEngine) Render(source string, data any) (string, error) {
	env := environment(data)

	var out strings.Builder
	out.Grow(len(source))

	rest, offset := source, 0
	for {
		i := nextDelimiter(rest)
		if i < 0 {
			out.WriteString(rest)
			break
		}
		out.WriteString(rest[:i])

		opener := rest[i : i+2]
		closer := "}}"
		if opener == "{#" {
			closer = "#}"
		}
		end := strings.Index(rest[i+2:], closer)
		if end < 0 {
			return "", &Error{Kind: KindSyntax, Err: fmt.Errorf("unclosed %q at offset %d", opener, offset+i)}
		}

		if opener == "{{" {
			value, err := e.evaluate(rest[i+2:i+2+end], env)
			if err != nil {
				return "", err
			}
			out.WriteString(value)
		}

		consumed := i + 2 + end + len(closer)
		offset += consumed
		rest = rest[consumed:]
	}
	return out.String(), nil
}

func (e *ExprEngine) evaluate(body string, env any) (string, error) {
	// Serialized markup escapes quotes and comparison operators.
	code := strings.TrimSpace(html.UnescapeString(body))
	if code == "" {
		return "", &Error{Kind: KindSyntax, Err: fmt.Errorf("empty expression")}
	}

	program, err := e.compile(code)
	if err != nil {
		return "", err
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return "", &Error{Kind: KindRuntime, Err: fmt.Errorf("evaluating %q: %w", code, err)}
	}

	text := format(result)
	if e.Escape {
		text = html.EscapeString(text)
	}
	return text, nil
}

func (e *ExprEngine) compile(code string) (*vm.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[code]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := expr.Compile(code, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, &Error{Kind: KindSyntax, Err: fmt.Errorf("compiling %q: %w", code, err)}
	}

	e.mu.Lock()
	if e.programs == nil {
		e.programs = make(map[string]*vm.Program)
	}
	e.programs[code] = program
	e.mu.Unlock()
	return program, nil
}

// nextDelimiter returns the offset of the first "{{" or "{#" in s, or -1.
func nextDelimiter(s string) int {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '{' && (s[i+1] == '{' || s[i+1] == '#') {
			return i
		}
	}
	return -1
}

func environment(data any) any {
	switch d := data.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return d
	default:
		return data
	}
}

// format prints values the way Twig does: nil and false render empty, true
// renders "1". Floats print in plain decimal.
func format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "1"
		}
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}
