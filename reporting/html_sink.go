package reporting

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/webspec-dev/webspec/results"
	"github.com/webspec-dev/webspec/types"
)

// HTMLSink renders the run report as a standalone HTML page.
type HTMLSink struct {
	dir  string
	tmpl *template.Template
}

// NewHTMLSink creates an HTML sink writing into dir.
func NewHTMLSink(dir string) (*HTMLSink, error) {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"duration": formatDuration,
		"status":   statusText,
		"failure":  failureText,
	}).Parse(htmlTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing report template: %w", err)
	}
	return &HTMLSink{dir: dir, tmpl: tmpl}, nil
}

func (s *HTMLSink) Name() string { return "html" }

type htmlData struct {
	Meta     results.Meta
	Status   types.SpecStatus
	Stats    types.RunStats
	Results  []types.RunResult
	Duration time.Duration
	When     string
}

func (s *HTMLSink) Write(report *results.Report) (string, error) {
	var b strings.Builder
	data := htmlData{
		Meta:     report.Meta,
		Status:   report.Status,
		Stats:    report.Stats,
		Results:  report.Results,
		Duration: report.Stats.EndTime.Sub(report.Stats.StartTime),
		When:     report.Stats.StartTime.Format(time.RFC3339),
	}
	if err := s.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering html report: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}
	path := filepath.Join(s.dir, "results.html")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("writing html report: %w", err)
	}
	return path, nil
}

const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>webspec run {{.Meta.RunID}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem; color: #1f2328; }
h1 { font-size: 1.3rem; }
table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
th, td { text-align: left; padding: 0.4rem 0.8rem; border-bottom: 1px solid #d0d7de; }
th { background: #f6f8fa; }
.pass { color: #1a7f37; font-weight: 600; }
.fail { color: #cf222e; font-weight: 600; }
.skip { color: #9a6700; font-weight: 600; }
.meta { color: #57606a; font-size: 0.9rem; }
</style>
</head>
<body>
<h1>Run {{.Meta.RunID}} <span class="{{.Status}}">{{status .Status}}</span></h1>
<p class="meta">
Target {{.Meta.Target}} | {{.Meta.Browser}} via {{.Meta.Engine}} | started {{.When}} | took {{duration .Duration}}<br>
{{.Stats.Total}} specs: {{.Stats.Passed}} passed, {{.Stats.Failed}} failed, {{.Stats.Skipped}} skipped
</p>
<table>
<tr><th>Status</th><th>Spec</th><th>Duration</th><th>Detail</th><th>Artifacts</th></tr>
{{range .Results}}
<tr>
<td class="{{.Status}}">{{status .Status}}</td>
<td>{{.SpecID}}</td>
<td>{{duration .Duration}}</td>
<td>{{failure .}}</td>
<td>{{range .ArtifactRefs}}<a href="{{.}}">{{.}}</a> {{end}}</td>
</tr>
{{end}}
</table>
</body>
</html>
`
