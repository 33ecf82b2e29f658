package service

import (
	"bytes"
	"fmt"
	"text/template"

	"teambilling/internal/domain"
)

// MessageData is the value notification templates are executed against.
type MessageData struct {
	TenantName  string
	Amount      string
	PaymentLink string
	BlockDay    int
	State       domain.AccessState
}

type compiledTemplate struct {
	title *template.Template
	body  *template.Template
}

// Renderer turns notification templates into titles and bodies.
type Renderer struct {
	templates map[domain.NotificationType]compiledTemplate
}

// NewRenderer parses every template up front so a broken template fails at startup.
func NewRenderer(templates map[domain.NotificationType]domain.MessageTemplate) (*Renderer, error) {
	r := &Renderer{templates: make(map[domain.NotificationType]compiledTemplate, len(templates))}
	for typ, src := range templates {
		title, err := template.New(string(typ) + ".title").Option("missingkey=error").Parse(src.Title)
		if err != nil {
			return nil, fmt.Errorf("template %s title: %w", typ, err)
		}
		body, err := template.New(string(typ) + ".body").Option("missingkey=error").Parse(src.Body)
		if err != nil {
			return nil, fmt.Errorf("template %s body: %w", typ, err)
		}
		r.templates[typ] = compiledTemplate{title: title, body: body}
	}
	return r, nil
}

func (r *Renderer) Render(typ domain.NotificationType, data MessageData) (string, string, error) {
	tmpl, ok := r.templates[typ]
	if !ok {
		return "", "", fmt.Errorf("no template for notification type %s", typ)
	}
	var title, body bytes.Buffer
	if err := tmpl.title.Execute(&title, data); err != nil {
		return "", "", fmt.Errorf("render %s title: %w", typ, err)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", typ, err)
	}
	return title.String(), body.String(), nil
}
