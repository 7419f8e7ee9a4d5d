package ui

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"
)

// Timing is one side of a benchmark as shown on the results page.
type Timing struct {
	Label   string
	Elapsed time.Duration
	Failed  bool
	Cause   string
}

// Result is a finished benchmark run prepared for display.
type Result struct {
	RunID      string
	Operation  string
	Name       string
	Size       int64
	StartedAt  time.Time
	Object     Timing
	Relational Timing
	Winner     string
	Ratio      float64
	RatioOK    bool

	// SaveLinks offers a copy of the payload from each store after a download.
	SaveLinks bool
}

// Record is a relational row shown in the records table.
type Record struct {
	ID   int64
	Name string
	Size int64
}

// Home is the data behind the dashboard landing page.
type Home struct {
	Names             []string
	Records           []Record
	Query             string
	AllowedExtensions []string
	MaxUploadBytes    int64
	Notice            string
	Driver            string
}

// pageWriter keeps the first write error so the render functions can emit
// markup without checking every call.
type pageWriter struct {
	w   io.Writer
	err error
}

func (p *pageWriter) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *pageWriter) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func esc(s string) string {
	return html.EscapeString(s)
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.4fs", d.Seconds())
}

const styles = `<style>
.bars{display:grid;gap:.5rem;margin:1rem 0}
.bar{display:grid;grid-template-columns:12rem 1fr 7rem;align-items:center;gap:.75rem}
.bar .fill{height:1.5rem;background:var(--pico-primary);border-radius:.25rem;min-width:2px}
.bar.failed .fill{background:var(--pico-del-color)}
.metrics{display:grid;grid-template-columns:repeat(3,1fr);gap:1rem}
.metrics article{margin:0}
.metrics strong{font-size:1.6rem;display:block}
.error-message{color:var(--pico-del-color)}
</style>`

// Layout renders a full HTML page with a title and body component.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &pageWriter{w: w}
		p.raw("<!DOCTYPE html><html lang=\"en\">")
		p.raw("<head><meta charset=\"utf-8\">")
		p.raw("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">")
		p.printf("<title>%s</title>", esc(title))
		// Minimal modern CSS framework (Pico.css) via CDN.
		p.raw("<link rel=\"stylesheet\" href=\"https://unpkg.com/@picocss/pico@2/css/pico.min.css\">")
		p.raw("<script src=\"https://unpkg.com/htmx.org@1.9.12\" integrity=\"sha384-srD8tA5lZgUlAXb/DvBy1UG775H8sG8vyXK3w63U1zrtRXkuTDIaTzGvX2UksI0M\" crossorigin=\"anonymous\"></script>")
		p.raw(styles)
		p.raw("</head>")
		p.raw("<body><main class=\"container\">")
		p.raw("<nav><ul><li><a href=\"/\"><strong>blobbench</strong></a></li></ul>")
		p.raw("<ul><li>Object store vs. relational store</li></ul></nav>")
		if p.err != nil {
			return p.err
		}

		if err := body.Render(ctx, w); err != nil {
			return err
		}

		p.raw("</main></body></html>")
		return p.err
	})
}

// HomePage renders the upload form, the download form and the records table.
func HomePage(h Home) templ.Component {
	return Layout("blobbench", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &pageWriter{w: w}

		if h.Notice != "" {
			p.printf("<article><p>%s</p></article>", esc(h.Notice))
		}

		p.raw("<section><header><h2>Upload benchmark</h2>")
		p.raw("<p>The file is written to the object store, then inserted as a blob into the relational store. Both calls are timed.</p></header>")
		p.raw("<form method=\"post\" action=\"/upload\" enctype=\"multipart/form-data\">")
		accept := ""
		if len(h.AllowedExtensions) > 0 {
			accept = fmt.Sprintf(" accept=\"%s\"", esc(strings.Join(h.AllowedExtensions, ",")))
		}
		p.printf("<input type=\"file\" name=\"file\" required%s>", accept)
		p.printf("<small>Maximum size %s", esc(humanize.IBytes(uint64(h.MaxUploadBytes))))
		if len(h.AllowedExtensions) > 0 {
			p.printf(" &middot; allowed types %s", esc(strings.Join(h.AllowedExtensions, ", ")))
		}
		p.raw("</small>")
		p.raw("<button type=\"submit\">Run upload benchmark</button></form></section>")

		p.raw("<section><header><h2>Download benchmark</h2></header>")
		if len(h.Names) == 0 {
			p.raw("<p>Nothing stored yet.</p>")
		} else {
			p.raw("<form method=\"post\" action=\"/download\"><select name=\"name\" required>")
			for _, name := range h.Names {
				p.printf("<option value=\"%s\">%s</option>", esc(name), esc(name))
			}
			p.raw("</select><button type=\"submit\">Run download benchmark</button></form>")
		}
		p.raw("</section>")

		p.printf("<section><header><h2>Relational records</h2><p>Stored with the %s driver.</p></header>", esc(h.Driver))
		p.printf("<input type=\"search\" name=\"q\" value=\"%s\" placeholder=\"Search by name\" ", esc(h.Query))
		p.raw("hx-get=\"/records\" hx-trigger=\"input changed delay:300ms, search\" hx-target=\"#records\">")
		p.raw("<div id=\"records\">")
		if p.err != nil {
			return p.err
		}

		if err := RecordsTable(h.Records).Render(ctx, w); err != nil {
			return err
		}

		p.raw("</div></section>")
		return p.err
	}))
}

// RecordsTable renders the searchable list of relational rows with a delete
// action per name.
func RecordsTable(records []Record) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &pageWriter{w: w}

		if len(records) == 0 {
			p.raw("<p>No matching records.</p>")
			return p.err
		}

		p.raw("<table><thead><tr><th>ID</th><th>Name</th><th>Size</th><th></th></tr></thead><tbody>")
		for _, rec := range records {
			p.printf("<tr><td>%d</td><td>%s</td><td>%s</td>", rec.ID, esc(rec.Name), esc(humanize.IBytes(uint64(rec.Size))))
			p.raw("<td><form method=\"post\" action=\"/delete\" style=\"margin:0\">")
			p.printf("<input type=\"hidden\" name=\"name\" value=\"%s\">", esc(rec.Name))
			p.raw("<button type=\"submit\" class=\"secondary outline\">Delete all with this name</button></form></td></tr>")
		}
		p.raw("</tbody></table>")
		return p.err
	})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func ratioText(r Result) string {
	if !r.RatioOK {
		return "n/a"
	}
	return fmt.Sprintf("%.1fx", r.Ratio)
}

func writeMetric(p *pageWriter, t Timing) {
	p.printf("<article><small>%s latency</small>", esc(t.Label))
	if t.Failed {
		p.printf("<strong class=\"error-message\">failed</strong><small>%s</small>", esc(t.Cause))
	} else {
		p.printf("<strong>%s</strong>", seconds(t.Elapsed))
	}
	p.raw("</article>")
}

func writeBar(p *pageWriter, t Timing, longest time.Duration) {
	if t.Failed {
		p.printf("<div class=\"bar failed\"><span>%s</span><div class=\"fill\" style=\"width:2px\"></div><span>failed</span></div>", esc(t.Label))
		return
	}

	pct := 100.0
	if longest > 0 {
		pct = float64(t.Elapsed) / float64(longest) * 100
	}
	p.printf("<div class=\"bar\"><span>%s</span><div class=\"fill\" style=\"width:%.1f%%\"></div><span>%s</span></div>", esc(t.Label), pct, seconds(t.Elapsed))
}

// ResultPage renders latency metrics, a bar chart and the technical details
// of a single run.
func ResultPage(r Result) templ.Component {
	title := fmt.Sprintf("blobbench - %s %s", r.Operation, r.Name)
	return Layout(title, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &pageWriter{w: w}

		p.printf("<section><header><h2>%s benchmark: %s</h2>", esc(capitalize(r.Operation)), esc(r.Name))
		p.printf("<p>File %s &middot; size %s</p></header>", esc(r.Name), esc(humanize.IBytes(uint64(r.Size))))

		p.raw("<div class=\"metrics\">")
		writeMetric(p, r.Object)
		writeMetric(p, r.Relational)
		p.printf("<article><small>Speed advantage</small><strong>%s</strong><small>%s is faster</small></article>", ratioText(r), esc(r.Winner))
		p.raw("</div>")

		longest := r.Object.Elapsed
		if !r.Relational.Failed && r.Relational.Elapsed > longest {
			longest = r.Relational.Elapsed
		}
		p.raw("<h3>Latency</h3><div class=\"bars\">")
		writeBar(p, r.Object, longest)
		writeBar(p, r.Relational, longest)
		p.raw("</div>")

		if r.SaveLinks {
			escaped := url.PathEscape(r.Name)
			p.raw("<h3>Save</h3><p>")
			p.printf("<a role=\"button\" class=\"outline\" href=\"/files/object/%s\" download>Save from %s</a> ", esc(escaped), esc(r.Object.Label))
			if !r.Relational.Failed {
				p.printf("<a role=\"button\" class=\"outline\" href=\"/files/relational/%s\" download>Save from %s</a>", esc(escaped), esc(r.Relational.Label))
			}
			p.raw("</p>")
		}

		relationalOp := "INSERT BLOB"
		objectOp := "PutObject"
		if r.Operation == "download" {
			relationalOp = "SELECT BLOB"
			objectOp = "GetObject"
		}

		p.raw("<h3>Technical execution details</h3><table><thead><tr><th>Metric</th><th>Value</th></tr></thead><tbody>")
		p.printf("<tr><td>Run</td><td><code>%s</code></td></tr>", esc(r.RunID))
		p.printf("<tr><td>Timestamp</td><td>%s</td></tr>", esc(r.StartedAt.UTC().Format(time.RFC3339)))
		p.printf("<tr><td>Payload size</td><td>%s (%d bytes)</td></tr>", esc(humanize.IBytes(uint64(r.Size))), r.Size)
		p.printf("<tr><td>%s operation</td><td>%s</td></tr>", esc(r.Object.Label), objectOp)
		p.printf("<tr><td>%s operation</td><td>%s</td></tr>", esc(r.Relational.Label), relationalOp)
		p.raw("</tbody></table>")

		p.raw("<p><a href=\"/\">&larr; Back</a></p></section>")
		return p.err
	}))
}

// MessagePage renders a short notice or error with a link back home.
func MessagePage(title string, message string, isError bool) templ.Component {
	return Layout("blobbench - "+title, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &pageWriter{w: w}
		p.printf("<section><header><h2>%s</h2></header>", esc(title))
		if isError {
			p.printf("<p class=\"error-message\">%s</p>", esc(message))
		} else {
			p.printf("<p>%s</p>", esc(message))
		}
		p.raw("<p><a href=\"/\">&larr; Back</a></p></section>")
		return p.err
	}))
}
