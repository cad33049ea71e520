// Package templates renders the HTML pages served by the web package.
package templates

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

// SummaryParams is the data shown on a registration summary page.
type SummaryParams struct {
	UploadID      string
	FileName      string
	CreatedAt     string
	TotalRows     int
	TotalSuccess  int
	TotalError    int
	Accounts      []AccountRow
	Failed        []FailedRow
	AccountsURL   string
	FailedRowsURL string
}

// AccountRow is one registered account.
type AccountRow struct {
	FullName      string
	PhoneNumber   string
	SocialID      string
	AccountNumber string
}

// FailedRow is one rejected input line.
type FailedRow struct {
	LineNumber int
	Reason     string
	Data       []string
}

const pageStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2937}` +
	`table{border-collapse:collapse;margin:1rem 0}` +
	`th,td{border:1px solid #d1d5db;padding:.35rem .75rem;text-align:left}` +
	`th{background:#f3f4f6}.ok{color:#047857}.bad{color:#b91c1c}` +
	`.alert{border:1px solid #fca5a5;background:#fef2f2;padding:1rem}`

// htmlWriter accumulates the first write error so page code reads linearly.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *htmlWriter) cell(tag, s string) {
	h.raw("<" + tag + ">")
	h.text(s)
	h.raw("</" + tag + ">")
}

func (h *htmlWriter) open(title string) {
	h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>`)
	h.text(title)
	h.raw(`</title><style>` + pageStyle + `</style></head><body>`)
}

func (h *htmlWriter) close() {
	h.raw(`</body></html>`)
}

// SummaryPage renders the result of one registration run.
func SummaryPage(p SummaryParams) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.open("Registration " + p.UploadID)

		h.cell("h1", "Registration summary")
		h.raw(`<p>`)
		h.text(fmt.Sprintf("%s, uploaded %s", p.FileName, p.CreatedAt))
		h.raw(`</p><ul>`)
		h.cell("li", "Rows uploaded: "+strconv.Itoa(p.TotalRows))
		h.raw(`<li class="ok">`)
		h.text("Accounts created: " + strconv.Itoa(p.TotalSuccess))
		h.raw(`</li><li class="bad">`)
		h.text("Rows rejected: " + strconv.Itoa(p.TotalError))
		h.raw(`</li></ul>`)

		h.cell("h2", "New accounts")
		if len(p.Accounts) == 0 {
			h.cell("p", "No accounts were created.")
		} else {
			h.raw(`<p><a href="`)
			h.text(p.AccountsURL)
			h.raw(`">Download CSV</a></p><table><thead><tr>`)
			for _, col := range []string{"Full name", "Phone number", "Social ID", "Account number"} {
				h.cell("th", col)
			}
			h.raw(`</tr></thead><tbody>`)
			for _, a := range p.Accounts {
				h.raw(`<tr>`)
				h.cell("td", a.FullName)
				h.cell("td", a.PhoneNumber)
				h.cell("td", a.SocialID)
				h.cell("td", a.AccountNumber)
				h.raw(`</tr>`)
			}
			h.raw(`</tbody></table>`)
		}

		if len(p.Failed) > 0 {
			h.cell("h2", "Rejected rows")
			h.raw(`<p><a href="`)
			h.text(p.FailedRowsURL)
			h.raw(`">Download failed rows</a></p><table><thead><tr>`)
			h.cell("th", "Line")
			h.cell("th", "Reason")
			h.cell("th", "Data")
			h.raw(`</tr></thead><tbody>`)
			for _, f := range p.Failed {
				h.raw(`<tr>`)
				h.cell("td", strconv.Itoa(f.LineNumber))
				h.cell("td", f.Reason)
				h.cell("td", strings.Join(f.Data, ", "))
				h.raw(`</tr>`)
			}
			h.raw(`</tbody></table>`)
		}

		h.close()
		return h.err
	})
}

// ErrorPage renders a user-facing error with its support code.
func ErrorPage(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.open("Error " + code)
		h.raw(`<div class="alert" role="alert">`)
		h.cell("strong", message)
		if action != "" {
			h.cell("p", action)
		}
		h.cell("small", "Code: "+code)
		h.raw(`</div>`)
		h.close()
		return h.err
	})
}
