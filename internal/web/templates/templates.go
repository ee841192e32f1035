// Package templates renders the HTML pages of the web UI as templ components.
package templates

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/JonMunkholm/sheetclean/internal/core"
	"github.com/JonMunkholm/sheetclean/internal/session"
	"github.com/a-h/templ"
)

// View is everything the workspace page needs.
type View struct {
	Snapshot session.Snapshot
	Error    *core.UserMessage
	MaxFiles int
}

// writer accumulates the first write error so components can emit markup
// without checking every call.
type writer struct {
	w   io.Writer
	err error
}

func (h *writer) raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

func (h *writer) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *writer) render(ctx context.Context, c templ.Component) {
	if h.err != nil {
		return
	}
	h.err = c.Render(ctx, h.w)
}

// Page wraps body in the HTML document.
func Page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &writer{w: w}
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.raw(`<title>`)
		h.text(title)
		h.raw(`</title><style>`)
		h.raw(pageStyle)
		h.raw(`</style></head><body><main>`)
		h.render(ctx, body)
		h.raw(`</main></body></html>`)
		return h.err
	})
}

const pageStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#222}
main{max-width:960px;margin:auto}
table{border-collapse:collapse;margin:1rem 0;font-size:.9rem}
th,td{border:1px solid #ccc;padding:.25rem .5rem;text-align:left}
th{background:#f3f3f3}
section{margin-bottom:2rem}
.alert{border:1px solid #d33;background:#fee;padding:.75rem;margin-bottom:1rem}
.warn{color:#a60}
.muted{color:#777}`

// Workspace renders the page body for the session's current stage.
func Workspace(v View) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &writer{w: w}
		snap := v.Snapshot

		h.raw(`<h1>Merge and clean spreadsheets</h1>`)
		if v.Error != nil {
			h.render(ctx, ErrorAlert(v.Error.Message, v.Error.Action, v.Error.Code))
		}

		h.render(ctx, UploadForm(v.MaxFiles, snap.HasFiles()))

		if snap.HasFiles() {
			h.render(ctx, MergedPreview(snap))
		}
		if snap.IsCleaned() {
			h.render(ctx, CleanedPreview(snap))
		}
		if snap.HasFiles() {
			h.raw(`<form method="post" action="/reset"><button type="submit">Start over</button></form>`)
		}
		return h.err
	})
}

// UploadForm renders the multi-file upload form.
func UploadForm(maxFiles int, replacing bool) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &writer{w: w}
		h.raw(`<section id="upload"><h2>1. Upload files</h2>`)
		h.raw(`<form method="post" action="/upload" enctype="multipart/form-data">`)
		h.raw(`<input type="file" name="files" multiple required accept=".xlsx,.csv,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet,text/csv"> `)
		if replacing {
			h.raw(`<button type="submit">Replace files</button>`)
		} else {
			h.raw(`<button type="submit">Merge files</button>`)
		}
		h.raw(`</form>`)
		if maxFiles > 0 {
			h.raw(`<p class="muted">Up to `)
			h.text(strconv.Itoa(maxFiles))
			h.raw(` .xlsx or .csv files per upload.</p>`)
		}
		h.raw(`</section>`)
		return h.err
	})
}

// MergedPreview renders the merged table head and the column selection form.
func MergedPreview(snap session.Snapshot) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &writer{w: w}
		p := snap.MergedPreview

		h.raw(`<section id="merged"><h2>2. Choose columns</h2><p>Merged `)
		h.text(strconv.Itoa(p.Total))
		h.raw(` rows from `)
		for i, src := range snap.Sources {
			if i > 0 {
				h.raw(", ")
			}
			h.raw(`<code>`)
			h.text(src)
			h.raw(`</code>`)
		}
		h.raw(`.</p>`)

		for _, warning := range snap.Warnings {
			h.raw(`<p class="warn">`)
			h.text(warning)
			h.raw(`</p>`)
		}

		h.raw(`<table><thead><tr>`)
		for _, col := range p.Columns {
			h.raw(`<th>`)
			h.text(col)
			h.raw(`</th>`)
		}
		h.raw(`</tr></thead><tbody>`)
		for _, row := range p.Rows {
			h.raw(`<tr>`)
			for _, cell := range row {
				h.raw(`<td>`)
				h.text(cell)
				h.raw(`</td>`)
			}
			h.raw(`</tr>`)
		}
		h.raw(`</tbody></table>`)
		if len(p.Rows) < p.Total {
			h.raw(`<p class="muted">Showing the first `)
			h.text(strconv.Itoa(len(p.Rows)))
			h.raw(` rows.</p>`)
		}

		h.raw(`<form method="post" action="/clean">`)
		columnSelect(h, "name_column", "Name column", p.Columns, snap.NameColumn)
		columnSelect(h, "contact_column", "Contact column", p.Columns, snap.ContactColumn)
		h.raw(`<button type="submit">Clean data</button></form></section>`)
		return h.err
	})
}

func columnSelect(h *writer, name, label string, columns []string, selected string) {
	h.raw(`<label>`)
	h.text(label)
	h.raw(` <select name="`)
	h.text(name)
	h.raw(`" required>`)
	for _, col := range columns {
		h.raw(`<option value="`)
		h.text(col)
		h.raw(`"`)
		if col == selected {
			h.raw(` selected`)
		}
		h.raw(`>`)
		h.text(col)
		h.raw(`</option>`)
	}
	h.raw(`</select></label> `)
}

// CleanedPreview renders the cleaned head, completeness stats and the
// download link.
func CleanedPreview(snap session.Snapshot) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &writer{w: w}
		st := snap.Stats

		h.raw(`<section id="cleaned"><h2>3. Download</h2><p>`)
		h.text(fmt.Sprintf("%d rows: %d with 10-digit contacts, %d short, %d empty.",
			st.Rows, st.Full, st.Short, st.Empty))
		h.raw(`</p><table><thead><tr><th>Name</th><th>Contacts</th></tr></thead><tbody>`)
		for _, row := range snap.Cleaned {
			h.raw(`<tr><td>`)
			h.text(row.Name)
			h.raw(`</td><td>`)
			h.text(row.Contacts)
			h.raw(`</td></tr>`)
		}
		h.raw(`</tbody></table><p><a href="/download" download>Download `)
		h.text(snap.ExportName)
		h.raw(`</a></p></section>`)
		return h.err
	})
}

// ErrorAlert renders a user-facing error with its support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &writer{w: w}
		h.raw(`<div class="alert" role="alert"><strong>`)
		h.text(message)
		h.raw(`</strong>`)
		if action != "" {
			h.raw(` `)
			h.text(action)
		}
		if code != "" {
			h.raw(` <span class="muted">(`)
			h.text(code)
			h.raw(`)</span>`)
		}
		h.raw(`</div>`)
		return h.err
	})
}
