package render

import (
	"fmt"
	"regexp"
	"strings"

	"DF-FIDELITY/internal/models"
)

var anyPlaceholder = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)

// ReplaceContent substitutes field values into a text-mode body.
// Placeholders match `{{ name }}` case-insensitively with optional
// inner whitespace. Placeholders naming no field render as the empty
// string; fields the body never references are simply not substituted.
func ReplaceContent(content string, fields []models.TemplateField, values map[string]string) string {
	for _, field := range fields {
		val := values[field.Name]
		if val == "" {
			val = field.DefaultValue
		}
		pattern := regexp.MustCompile(`(?i)\{\{\s*` + regexp.QuoteMeta(field.Name) + `\s*\}\}`)
		content = pattern.ReplaceAllLiteralString(content, val)
	}
	// Anything left over names no field.
	return anyPlaceholder.ReplaceAllString(content, "")
}

// ContentWarnings reports mismatches between a template's body and its
// field set. Mismatches are non-fatal: unmapped placeholders render
// empty, unused fields are ignored.
func ContentWarnings(t *models.DocumentTemplate) []string {
	known := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		known[strings.ToLower(f.Name)] = false
	}

	var warnings []string
	for _, m := range anyPlaceholder.FindAllStringSubmatch(t.Content, -1) {
		name := strings.ToLower(strings.TrimSpace(m[1]))
		if _, ok := known[name]; ok {
			known[name] = true
		} else {
			warnings = append(warnings, fmt.Sprintf("placeholder {{%s}} has no matching field and will render empty", strings.TrimSpace(m[1])))
		}
	}
	if t.Content != "" {
		for _, f := range t.Fields {
			if !known[strings.ToLower(f.Name)] {
				warnings = append(warnings, fmt.Sprintf("field %q is never referenced by the template body", f.Name))
			}
		}
	}
	return warnings
}

// BuildDocHTML wraps substituted content in the Word-compatible HTML
// envelope used for .doc artifacts.
func BuildDocHTML(content string) string {
	return `<html xmlns:o='urn:schemas-microsoft-com:office:office' xmlns:w='urn:schemas-microsoft-com:office:word' xmlns='http://www.w3.org/TR/REC-html40'>
<head><meta charset='utf-8'><style>body { font-family: 'Segoe UI', Arial; }</style></head>
<body>` + content + `</body></html>`
}
