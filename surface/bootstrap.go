package surface

import (
	_ "embed"
	"fmt"
	"html/template"
	"strings"
	"time"
)

//go:embed surface.js
var surfaceJS string

// Script returns the browser-side surface implementation.
func Script() string { return surfaceJS }

const defaultTailwindURL = "https://cdn.tailwindcss.com"

const instrumentCSS = `
.pgs-section { position: relative; }
.pgs-section.pgs-selected { outline: 2px solid #6366f1; outline-offset: -2px; }
[data-editable]:hover { outline: 1px dashed #a5b4fc; }
[data-editable]:focus { outline: 2px solid #6366f1; }
.pgs-active { outline: 2px solid #f59e0b !important; }
pgs-badge { display: none; }
.pgs-section:hover pgs-badge { display: inline-block; position: absolute; font: 11px sans-serif;
  background: #111827; color: #fff; padding: 1px 6px; border-radius: 4px; pointer-events: none; }
`

// BootstrapConfig parameterises the document served to a browser surface.
type BootstrapConfig struct {
	Title string
	// SocketURL, when set, makes the page open a websocket to the host.
	// Relative paths resolve against the page origin.
	SocketURL string
	// BindingName, when set, sends outbound messages through a CDP runtime
	// binding of that name instead.
	BindingName string
	Debounce    time.Duration
	Interval    time.Duration
	// TailwindURL defaults to the Tailwind CDN; "-" disables it.
	TailwindURL string
}

func (bc *BootstrapConfig) defaults() {
	if bc.Title == "" {
		bc.Title = "pagesync"
	}
	if bc.TailwindURL == "" {
		bc.TailwindURL = defaultTailwindURL
	}
	tc := trackerConfig{Debounce: bc.Debounce, Interval: bc.Interval}
	tc.defaults()
	bc.Debounce, bc.Interval = tc.Debounce, tc.Interval
}

type pageConfig struct {
	SocketURL   string `json:"socketUrl,omitempty"`
	BindingName string `json:"bindingName,omitempty"`
	DebounceMS  int64  `json:"debounceMs"`
	IntervalMS  int64  `json:"intervalMs"`
}

var bootstrapTmpl = template.Must(template.New("surface").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
{{if .Tailwind}}<script src="{{.Tailwind}}"></script>
{{end}}<style>{{.Styles}}</style>
</head>
<body>
<main id="pgs-root"></main>
<script>window.__pagesyncConfig = {{.Config}};</script>
<script>{{.Script}}</script>
</body>
</html>
`))

// Bootstrap renders the full HTML document a browser surface boots from.
func Bootstrap(cfg BootstrapConfig) (string, error) {
	cfg.defaults()
	tailwind := cfg.TailwindURL
	if tailwind == "-" {
		tailwind = ""
	}
	var b strings.Builder
	err := bootstrapTmpl.Execute(&b, map[string]any{
		"Title":    cfg.Title,
		"Tailwind": tailwind,
		"Styles":   template.CSS(instrumentCSS),
		"Config": pageConfig{
			SocketURL:   cfg.SocketURL,
			BindingName: cfg.BindingName,
			DebounceMS:  cfg.Debounce.Milliseconds(),
			IntervalMS:  cfg.Interval.Milliseconds(),
		},
		"Script": template.JS(surfaceJS),
	})
	if err != nil {
		return "", fmt.Errorf("surface: bootstrap: %w", err)
	}
	return b.String(), nil
}
