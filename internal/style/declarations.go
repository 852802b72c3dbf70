// internal/style/declarations.go
package style

import (
	"strings"
)

// Property represents a CSS property name (e.g., "top").
type Property string

// Value represents a CSS value (e.g., "10px").
type Value string

// Declaration is a single key-value pair from an inline style attribute.
type Declaration struct {
	Property  Property
	Value     Value
	Important bool
}

// String renders the declaration as `prop: value;`.
func (d Declaration) String() string {
	var b strings.Builder
	b.WriteString(string(d.Property))
	b.WriteString(": ")
	b.WriteString(string(d.Value))
	if d.Important {
		b.WriteString(" !important")
	}
	b.WriteByte(';')
	return b.String()
}

// Declarations is an ordered set of inline declarations. Rewriting a property keeps
// its original position so a re-serialized attribute differs only in the values
// that changed.
type Declarations struct {
	list []Declaration
}

// Parse reads the contents of a `style` attribute. It never fails: malformed
// declarations are skipped the same way a browser would skip them.
func Parse(attr string) *Declarations {
	decls := &Declarations{}
	for _, chunk := range splitDeclarations(attr) {
		prop, val, ok := strings.Cut(chunk, ":")
		if !ok {
			continue
		}
		prop = strings.TrimSpace(prop)
		val = strings.TrimSpace(val)
		if !isIdentifier(prop) || val == "" {
			continue
		}

		important := false
		if lower := strings.ToLower(val); strings.HasSuffix(lower, "!important") {
			important = true
			val = strings.TrimSpace(val[:len(val)-len("!important")])
		}
		decls.list = append(decls.list, Declaration{
			Property:  Property(strings.ToLower(prop)),
			Value:     Value(val),
			Important: important,
		})
	}
	return decls
}

// Len returns the number of declarations.
func (d *Declarations) Len() int { return len(d.list) }

// All returns a copy of the declarations in source order.
func (d *Declarations) All() []Declaration {
	out := make([]Declaration, len(d.list))
	copy(out, d.list)
	return out
}

// Get returns the value of the last declaration of prop.
func (d *Declarations) Get(prop Property) (Value, bool) {
	for i := len(d.list) - 1; i >= 0; i-- {
		if d.list[i].Property == prop {
			return d.list[i].Value, true
		}
	}
	return "", false
}

// Has reports whether prop is declared.
func (d *Declarations) Has(prop Property) bool {
	_, ok := d.Get(prop)
	return ok
}

// Set replaces the value of the last declaration of prop, or appends a new one.
func (d *Declarations) Set(prop Property, val Value) {
	for i := len(d.list) - 1; i >= 0; i-- {
		if d.list[i].Property == prop {
			d.list[i].Value = val
			return
		}
	}
	d.list = append(d.list, Declaration{Property: prop, Value: val})
}

// Delete removes every declaration of prop.
func (d *Declarations) Delete(prop Property) {
	kept := d.list[:0]
	for _, decl := range d.list {
		if decl.Property != prop {
			kept = append(kept, decl)
		}
	}
	d.list = kept
}

// String serializes the declarations back into attribute form.
func (d *Declarations) String() string {
	parts := make([]string, 0, len(d.list))
	for _, decl := range d.list {
		parts = append(parts, decl.String())
	}
	return strings.Join(parts, " ")
}

// splitDeclarations cuts attr at top-level semicolons. Semicolons inside
// quotes or parentheses do not split, and comments are dropped.
func splitDeclarations(attr string) []string {
	var (
		chunks []string
		cur    strings.Builder
		quote  byte
		depth  int
	)
	for i := 0; i < len(attr); i++ {
		ch := attr[i]
		switch {
		case quote != 0:
			cur.WriteByte(ch)
			if ch == '\\' && i+1 < len(attr) {
				i++
				cur.WriteByte(attr[i])
			} else if ch == quote {
				quote = 0
			}
		case ch == '/' && strings.HasPrefix(attr[i:], "/*"):
			cur.WriteByte(' ')
			end := strings.Index(attr[i+2:], "*/")
			if end < 0 {
				i = len(attr)
			} else {
				i += end + 3
			}
		case ch == '"' || ch == '\'':
			quote = ch
			cur.WriteByte(ch)
		case ch == '(':
			depth++
			cur.WriteByte(ch)
		case ch == ')' && depth > 0:
			depth--
			cur.WriteByte(ch)
		case ch == ';' && depth == 0:
			chunks = append(chunks, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	return append(chunks, cur.String())
}

// isIdentifier reports whether s is a plain property name: a letter, '_' or
// '-' followed by those or digits.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch == '_', ch == '-':
		case ch >= '0' && ch <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
