package export

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"greetbox/api/internal/richtext"
)

// GreetingInfo holds the metadata rendered alongside the content.
type GreetingInfo struct {
	Title      string
	AuthorName string
	Markup     string
	CreatedAt  time.Time
}

// Service provides greeting export functionality
type Service struct{}

// NewService creates a new export service
func NewService() *Service {
	return &Service{}
}

// ExportPDF renders a greeting to HTML and converts it to a PDF.
func (s *Service) ExportPDF(g GreetingInfo) (*Result, error) {
	contentHTML, err := richtext.RenderHTML(g.Markup)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}

	html, err := renderGreetingHTML(templateData{
		Title:       g.Title,
		AuthorName:  g.AuthorName,
		ContentHTML: template.HTML(contentHTML),
		CreatedAt:   g.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	return exportPDF(html, g.Title)
}

type templateData struct {
	Title       string
	AuthorName  string
	ContentHTML template.HTML
	CreatedAt   time.Time
}

var greetingTemplate = template.Must(template.New("greeting").Parse(greetingTemplateHTML))

func renderGreetingHTML(data templateData) (string, error) {
	var buf bytes.Buffer
	if err := greetingTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const greetingTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, 'Times New Roman', serif; line-height: 1.7; max-width: 700px; margin: 2rem auto; color: #1f2937; }
    h1 { text-align: center; font-size: 2rem; margin-bottom: 0.25rem; }
    .meta { text-align: center; color: #6b7280; font-size: 0.9em; margin-bottom: 2.5rem; }
    .media-wrapper { margin: 1.25rem 0; }
    img, video { max-width: 100%; border-radius: 8px; }
    blockquote { border-left: 3px solid #d1d5db; margin-left: 0; padding-left: 1rem; color: #4b5563; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">From {{.AuthorName}} &middot; {{.CreatedAt.Format "January 2, 2006"}}</div>
  <div>{{.ContentHTML}}</div>
</body>
</html>`
