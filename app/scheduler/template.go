package scheduler

import (
	"regexp"
	"strings"

	"github.com/HeltonFraga01/cortexx-engine/models"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// RenderTemplate substitutes {{variable}} placeholders with contact values.
// Unknown placeholders are replaced with an empty string.
func RenderTemplate(body string, vars models.ContactVariables) string {
	if !strings.Contains(body, "{{") {
		return body
	}
	return placeholderPattern.ReplaceAllStringFunc(body, func(m string) string {
		name := placeholderPattern.FindStringSubmatch(m)[1]
		return vars[name]
	})
}

// RenderSequence renders every template in a campaign sequence for one contact
func RenderSequence(seq models.MessageSequence, vars models.ContactVariables) []OutboundMessage {
	out := make([]OutboundMessage, 0, len(seq))
	for _, tpl := range seq {
		msg := OutboundMessage{
			Kind:     tpl.Kind,
			Body:     RenderTemplate(tpl.Body, vars),
			MediaURL: tpl.MediaURL,
		}
		if tpl.Caption != nil {
			rendered := RenderTemplate(*tpl.Caption, vars)
			msg.Caption = &rendered
		}
		out = append(out, msg)
	}
	return out
}
