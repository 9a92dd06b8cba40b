// Package templates holds the HTML components rendered by the web server.
package templates

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"
)

// PageData is what the join page displays.
type PageData struct {
	KeyColumn   string
	OutputName  string
	MaxFileSize int64
	Result      ResultData
}

// ResultData is the status line plus the optional preview.
type ResultData struct {
	Status      string
	Code        string
	Detail      string
	Columns     []string
	Rows        [][]string
	TotalRows   int
	CanDownload bool
	OutputName  string
	Failed      bool
}

// Page renders the full join page.
func Page(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		ew := &errWriter{w: w}
		ew.printf(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		ew.printf(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		ew.printf(`<title>Spreadsheet Join</title><style>%s</style></head><body>`, pageStyle)
		ew.printf(`<main><h1>Spreadsheet Join</h1>`)
		ew.printf(`<p class="hint">Rows of the ID file are kept in order and matched to the data file on the <code>%s</code> column.</p>`,
			templ.EscapeString(data.KeyColumn))
		ew.printf(`<form id="join-form" method="post" action="/" enctype="multipart/form-data">`)
		fileInput(ew, "keys", "ID file")
		fileInput(ew, "data", "Data file")
		ew.printf(`<p class="hint">Accepted formats: .xlsx and .csv, up to %s each.</p>`, formatBytes(data.MaxFileSize))
		ew.printf(`<div class="actions"><button type="submit">Join files</button>`)
		ew.printf(`<button type="submit" formaction="/download" id="download-button"%s>Download %s</button></div>`,
			disabledAttr(!data.Result.CanDownload), templ.EscapeString(data.OutputName))
		ew.printf(`</form><section id="result">`)
		if ew.err != nil {
			return ew.err
		}
		if err := Result(data.Result).Render(ctx, w); err != nil {
			return err
		}
		ew.printf(`</section></main><script>%s</script></body></html>`, pageScript)
		return ew.err
	})
}

// Result renders the status line and, on success, the preview table. It is
// also returned on its own for partial page updates.
func Result(data ResultData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		ew := &errWriter{w: w}
		class := "status"
		if data.Failed {
			class += " status-error"
		}
		ew.printf(`<p id="status" class="%s" data-can-download="%t"`, class, data.CanDownload)
		if data.Code != "" {
			ew.printf(` data-code="%s"`, templ.EscapeString(data.Code))
		}
		ew.printf(`>%s</p>`, templ.EscapeString(data.Status))
		if data.Detail != "" {
			ew.printf(`<p class="detail">%s</p>`, templ.EscapeString(data.Detail))
		}
		if len(data.Columns) == 0 {
			return ew.err
		}

		ew.printf(`<table id="preview"><thead><tr>`)
		for _, c := range data.Columns {
			ew.printf(`<th>%s</th>`, templ.EscapeString(c))
		}
		ew.printf(`</tr></thead><tbody>`)
		for _, row := range data.Rows {
			ew.printf(`<tr>`)
			for _, cell := range row {
				ew.printf(`<td>%s</td>`, templ.EscapeString(cell))
			}
			ew.printf(`</tr>`)
		}
		ew.printf(`</tbody></table>`)
		if data.TotalRows > len(data.Rows) {
			ew.printf(`<p class="hint">Showing %d of %d rows. Download %s for the full result.</p>`,
				len(data.Rows), data.TotalRows, templ.EscapeString(data.OutputName))
		}
		return ew.err
	})
}

// ErrorAlert renders an error message with its suggested action and code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		ew := &errWriter{w: w}
		ew.printf(`<div class="alert" role="alert"><p id="status" class="status status-error">%s</p>`, templ.EscapeString(message))
		if action != "" {
			ew.printf(`<p class="detail">%s</p>`, templ.EscapeString(action))
		}
		if code != "" {
			ew.printf(`<p class="code">Error code: %s</p>`, templ.EscapeString(code))
		}
		ew.printf(`</div>`)
		return ew.err
	})
}

func fileInput(ew *errWriter, name, label string) {
	ew.printf(`<label for="%[1]s">%[2]s</label>`, name, label)
	ew.printf(`<input type="file" id="%[1]s" name="%[1]s" accept=".xlsx,.csv,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet,text/csv">`, name)
}

func disabledAttr(disabled bool) string {
	if disabled {
		return " disabled"
	}
	return ""
}

func formatBytes(n int64) string {
	const mb = 1 << 20
	if n <= 0 {
		return "no limit"
	}
	if n%mb == 0 {
		return strconv.FormatInt(n/mb, 10) + " MB"
	}
	return strconv.FormatInt(n, 10) + " bytes"
}

// errWriter keeps the first write error so components can write freely and
// check once.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

const pageStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2937}
main{max-width:72rem;margin:0 auto}
label{display:block;font-weight:600;margin-top:1rem}
.actions{margin:1rem 0;display:flex;gap:.5rem}
button{padding:.5rem 1rem;border:0;border-radius:.25rem;background:#2563eb;color:#fff;cursor:pointer}
button[disabled]{background:#9ca3af;cursor:not-allowed}
.hint{color:#6b7280;font-size:.875rem}
.status{font-weight:600}
.status-error{color:#b91c1c}
.detail,.code{font-size:.875rem;color:#4b5563}
table{border-collapse:collapse;margin-top:1rem}
th,td{border:1px solid #d1d5db;padding:.25rem .5rem;text-align:left}
th{background:#f3f4f6}`

// pageScript submits the join form in place so the chosen files stay
// selected for the download button. Without it the form posts normally.
const pageScript = `(function(){
var form=document.getElementById("join-form");
var result=document.getElementById("result");
var download=document.getElementById("download-button");
form.addEventListener("submit",function(ev){
if(ev.submitter&&ev.submitter.id==="download-button"){return;}
ev.preventDefault();
fetch("/",{method:"POST",body:new FormData(form),headers:{"HX-Request":"true"}})
.then(function(r){return r.text();})
.then(function(html){
result.innerHTML=html;
var status=document.getElementById("status");
download.disabled=!(status&&status.dataset.canDownload==="true");
});
});
})();`
