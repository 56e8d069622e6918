// Package expander fills the {word} placeholder of a pattern template with a
// candidate word.
//
// The marker may also be written in the double-brace form {{word}}. Any other
// brace group, such as a repetition count like {2,3}, is copied through as long
// as it is closed. A '}' with no opening brace is plain text. Backslash-escaped
// braces are always copied through.
package expander

import (
	"fmt"
	"strings"
)

const (
	// Marker is the placeholder recognised inside templates
	Marker = "{word}"

	doubleMarker = "{{word}}"
)

// TemplateRenderError reports a template whose brace markup is malformed
type TemplateRenderError struct {
	Template string
	Word     string
	Offset   int
	Reason   string
}

func (e *TemplateRenderError) Error() string {
	return fmt.Sprintf("rendering template %q with word %q: %s at offset %d",
		e.Template, e.Word, e.Reason, e.Offset)
}

// HasMarker reports whether template contains a placeholder
func HasMarker(template string) bool {
	return strings.Contains(template, Marker)
}

// Expand substitutes word into every placeholder of template. Templates
// without a placeholder come back unchanged.
func Expand(template, word string) (string, error) {
	if !strings.Contains(template, "{") {
		return template, nil
	}

	var b strings.Builder
	b.Grow(len(template) + len(word))

	for i := 0; i < len(template); {
		c := template[i]
		switch c {
		case '\\':
			// keep the escape and whatever it escapes
			end := i + 2
			if end > len(template) {
				end = len(template)
			}
			b.WriteString(template[i:end])
			i = end

		case '{':
			rest := template[i:]
			if strings.HasPrefix(rest, doubleMarker) {
				b.WriteString(word)
				i += len(doubleMarker)
				continue
			}
			if strings.HasPrefix(rest, Marker) {
				b.WriteString(word)
				i += len(Marker)
				continue
			}
			closing := strings.IndexAny(rest[1:], "{}")
			if closing < 0 || rest[1+closing] == '{' {
				return "", &TemplateRenderError{
					Template: template,
					Word:     word,
					Offset:   i,
					Reason:   "unclosed '{'",
				}
			}
			b.WriteString(rest[:closing+2])
			i += closing + 2

		default:
			b.WriteByte(c)
			i++
		}
	}

	return b.String(), nil
}

// ExpandAll expands every template against word, keeping input order
func ExpandAll(templates []string, word string) ([]string, error) {
	concrete := make([]string, 0, len(templates))
	for _, tmpl := range templates {
		pattern, err := Expand(tmpl, word)
		if err != nil {
			return nil, err
		}
		concrete = append(concrete, pattern)
	}
	return concrete, nil
}
