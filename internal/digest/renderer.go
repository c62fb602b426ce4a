package digest

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/bissquit/news-digest/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

const (
	digestTemplate = "digest.html.tmpl"
	subjectPrefix  = "Your Daily News Digest"
)

// Digest is one rendered batch of articles for one recipient. It only lives
// for the duration of a single render and send.
type Digest struct {
	Recipient string
	Topics    []string
	Articles  []domain.Article
}

// Headlines returns the article titles in order.
func (d Digest) Headlines() []string {
	titles := make([]string, 0, len(d.Articles))
	for _, a := range d.Articles {
		titles = append(titles, a.Title)
	}
	return titles
}

// Renderer turns a Digest into a self-contained HTML fragment.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded digest template.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"topicList": topicList,
	}

	tmpl, err := template.New(digestTemplate).Funcs(funcMap).ParseFS(templatesFS, "templates/"+digestTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", digestTemplate, err)
	}

	return &Renderer{tmpl: tmpl}, nil
}

// Render renders the digest body. Articles without a description get an
// empty paragraph and articles without an image get no <img> element.
func (r *Renderer) Render(d Digest) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("execute template %s: %w", digestTemplate, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Subject returns the subject line for a digest sent at t.
func (r *Renderer) Subject(t time.Time) string {
	return fmt.Sprintf("%s - %s", subjectPrefix, t.Format("January 2, 2006"))
}

var titleCaser = cases.Title(language.English)

// topicList formats topics for prose: "Ai", "Ai and Space", "Ai, Space and Climate".
func topicList(topics []string) string {
	titled := make([]string, 0, len(topics))
	for _, t := range topics {
		if t = strings.TrimSpace(t); t != "" {
			titled = append(titled, titleCaser.String(t))
		}
	}

	switch len(titled) {
	case 0:
		return "your favorite topics"
	case 1:
		return titled[0]
	default:
		return strings.Join(titled[:len(titled)-1], ", ") + " and " + titled[len(titled)-1]
	}
}
