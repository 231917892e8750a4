package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"ainews/internal/contextutil"
	"ainews/internal/service"
	"ainews/internal/storage"
)

// DigestHandler renders the latest stories as an HTML page.
type DigestHandler struct {
	catalog  service.CatalogService
	title    string
	parser   goldmark.Markdown
	template *template.Template
}

// digestPageData holds template data for the digest page.
type digestPageData struct {
	Title   string
	Count   int
	Content template.HTML
}

// NewDigestHandler creates a new handler for the HTML digest.
func NewDigestHandler(catalog service.CatalogService, title string) *DigestHandler {
	tmpl := template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}}</title>
  <style>
    :root {
      color-scheme: dark;
    }
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
      margin: 0 auto;
      padding: 2rem;
      max-width: 900px;
      line-height: 1.7;
      background: #050b18;
      color: #e4ecff;
    }
    header {
      margin-bottom: 2rem;
      border-bottom: 1px solid rgba(148, 163, 184, 0.2);
      padding-bottom: 1.5rem;
    }
    h1 {
      margin-top: 0;
      color: #fff;
    }
    article h2 {
      color: #c7d2fe;
      margin-top: 2rem;
    }
    code {
      background: rgba(99, 102, 241, 0.18);
      padding: 2px 5px;
      border-radius: 6px;
      color: #cbd5ff;
    }
    a {
      color: #60a5fa;
      text-decoration: none;
    }
    .meta {
      color: #94a3b8;
      font-size: 0.95rem;
    }
  </style>
</head>
<body>
  <header>
    <h1>{{.Title}}</h1>
    <p class="meta">{{.Count}} latest stories &middot; <a href="/api/tags">tags</a></p>
  </header>
  <article>{{.Content}}</article>
</body>
</html>`))

	return &DigestHandler{
		catalog: catalog,
		title:   title,
		parser: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Typographer,
			),
		),
		template: tmpl,
	}
}

// ServeHTTP renders the digest. An optional limit query parameter overrides the default count.
func (h *DigestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req service.LatestRequest
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "limit must be an integer", http.StatusBadRequest)
			return
		}
		req.Limit = &limit
	}

	records, err := h.catalog.Latest(ctx, req)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to load latest stories")
		return
	}

	var rendered bytes.Buffer
	if err := h.parser.Convert([]byte(digestMarkdown(records)), &rendered); err != nil {
		logger.ErrorContext(ctx, "failed to render digest", "error", err)
		http.Error(w, "failed to render digest", http.StatusInternalServerError)
		return
	}

	var page bytes.Buffer
	data := digestPageData{
		Title:   h.title,
		Count:   len(records),
		Content: template.HTML(rendered.String()),
	}
	if err := h.template.Execute(&page, data); err != nil {
		logger.ErrorContext(ctx, "failed to execute digest template", "error", err)
		http.Error(w, "failed to render digest", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page.Bytes())
}

// digestMarkdown builds the markdown body for records. Stored text is escaped
// so it renders literally.
func digestMarkdown(records []storage.Record) string {
	if len(records) == 0 {
		return "_No stories yet._\n"
	}

	var b strings.Builder
	for _, rec := range records {
		title := escapeMarkdown(rec.Title)
		if title == "" {
			title = fmt.Sprintf("Story %d", rec.ID)
		}
		if isWebLink(rec.Link) {
			fmt.Fprintf(&b, "## [%s](<%s>)\n\n", title, rec.Link)
		} else {
			fmt.Fprintf(&b, "## %s\n\n", title)
		}

		meta := escapeMarkdown(rec.ReleaseDate)
		if rec.Source != "" {
			meta += " · " + escapeMarkdown(rec.Source)
		}
		if meta != "" {
			fmt.Fprintf(&b, "*%s*\n\n", meta)
		}

		if rec.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", escapeMarkdown(rec.Description))
		}

		if tags := service.SplitTags(rec.Tags); len(tags) > 0 {
			quoted := make([]string, len(tags))
			for i, tag := range tags {
				quoted[i] = "`" + strings.ReplaceAll(tag, "`", "'") + "`"
			}
			fmt.Fprintf(&b, "%s\n\n", strings.Join(quoted, " "))
		}
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`,
	"<", `\<`, ">", `\>`, "#", `\#`, "|", `\|`, "~", `\~`, "!", `\!`,
	"\r\n", " ", "\n", " ",
)

// orderedListMarker matches a CommonMark ordered list marker at line start.
var orderedListMarker = regexp.MustCompile(`^(\d{1,9})([.)])`)

// escapeMarkdown escapes inline markup and any leading block marker, so
// stored text always renders as a plain paragraph.
func escapeMarkdown(s string) string {
	s = markdownEscaper.Replace(strings.TrimSpace(s))
	if s == "" {
		return s
	}
	switch s[0] {
	case '-', '+', '=':
		return `\` + s
	}
	return orderedListMarker.ReplaceAllString(s, `${1}\${2}`)
}

// isWebLink reports whether link is an absolute http(s) URL safe to place in a link destination.
func isWebLink(link string) bool {
	if strings.ContainsAny(link, " <>\n\r") {
		return false
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
