package report

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// PageTitle is the fixed document title of HTML reports.
const PageTitle = "Simple Schema Reporter"

// Footer is the line written after the table of HTML reports.
const Footer = "Generated by Simple Schema Reporter."

const stylesheet = `
body { font-family: Segoe UI, Verdana, sans-serif; font-size: 10pt; color: #222; }
h1 { font-size: 14pt; }
table { border-collapse: collapse; }
th, td { border: 1px solid #999; padding: 2px 6px; text-align: left; vertical-align: top; }
th { background-color: #4a6fa5; color: #fff; cursor: pointer; }
tbody tr:nth-child(even) { background-color: #eef2f7; }
table.sortable th:not(.sorttable_sorted):not(.sorttable_sorted_reverse):not(.sorttable_nosort):after { content: " \25B4\25BE"; }
`

// markupWriter writes HTML and keeps the first write error.
type markupWriter struct {
	w   io.Writer
	err error
}

func (m *markupWriter) raw(s string) {
	if m.err == nil {
		_, m.err = io.WriteString(m.w, s)
	}
}

// element writes <tag>text</tag> with text escaped.
func (m *markupWriter) element(tag, text string) {
	m.raw("<" + tag + ">")
	m.raw(templ.EscapeString(text))
	m.raw("</" + tag + ">")
}

// reportTable renders the header row and one row per record. A sortable
// table carries the id and class that sorttable.js binds to.
func reportTable(header []string, rows [][]string, sortable bool) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		m := &markupWriter{w: w}
		if sortable {
			m.raw(`<table id="schemaTable" class="sortable">`)
		} else {
			m.raw("<table>")
		}
		m.raw("\n<thead>\n<tr>")
		for _, name := range header {
			m.element("th", name)
		}
		m.raw("</tr>\n</thead>\n<tbody>\n")
		for _, row := range rows {
			m.raw("<tr>")
			for _, cell := range row {
				m.element("td", cell)
			}
			m.raw("</tr>\n")
		}
		m.raw("</tbody>\n</table>")
		return m.err
	})
}

// reportDocument wraps table in a page declaring charset.
func reportDocument(title, charset string, table templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		m := &markupWriter{w: w}
		m.raw("<!DOCTYPE html>\n<html>\n<head>\n")
		m.raw(`<meta charset="` + templ.EscapeString(charset) + "\">\n")
		m.element("title", PageTitle)
		m.raw("\n<script src=\"sorttable.js\"></script>\n")
		m.raw("<style>" + stylesheet + "</style>\n</head>\n<body>\n")
		m.element("h1", title)
		m.raw("\n")
		if m.err != nil {
			return m.err
		}
		if err := table.Render(ctx, w); err != nil {
			return err
		}
		m.raw("\n")
		m.element("p", Footer)
		m.raw("\n</body>\n</html>\n")
		return m.err
	})
}

func tableRows(rep Report) [][]string {
	rows := make([][]string, len(rep.Records))
	for i, r := range rep.Records {
		rows[i] = r.Cells()
	}
	return rows
}

// WriteHTMLDocument writes a complete HTML page with a sortable table.
func WriteHTMLDocument(ctx context.Context, w io.Writer, rep Report, enc Encoding) error {
	table := reportTable(rep.header(), tableRows(rep), true)
	if err := reportDocument(rep.Title, enc.charset(), table).Render(ctx, w); err != nil {
		return fmt.Errorf("failed to render HTML document: %w", err)
	}
	return nil
}

// WriteHTMLFragment writes only the table, without document or styling hooks.
func WriteHTMLFragment(ctx context.Context, w io.Writer, rep Report) error {
	if err := reportTable(rep.header(), tableRows(rep), false).Render(ctx, w); err != nil {
		return fmt.Errorf("failed to render HTML fragment: %w", err)
	}
	return nil
}
