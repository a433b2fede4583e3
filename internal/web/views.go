package web

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/JonMunkholm/sheetnorm/internal/normalize"
	"github.com/JonMunkholm/sheetnorm/internal/profile"
	"github.com/a-h/templ"
)

const pageStyle = `body{font-family:sans-serif;margin:2rem;color:#222}
table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:.3rem .6rem;text-align:left}
.err{color:#a00}code{background:#f4f4f4;padding:0 .2rem}`

// layout wraps body in the page chrome.
func layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, "<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>%s</title><style>%s</style></head><body>",
			templ.EscapeString(title), pageStyle); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</body></html>")
		return err
	})
}

// indexPage lists the profiles and how to use the API.
func indexPage(summaries []profile.Summary, broken map[string]error) templ.Component {
	return layout("Supplier profiles", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		e := templ.EscapeString[string]
		fmt.Fprint(w, "<h1>Supplier profiles</h1>")
		if len(summaries) == 0 {
			fmt.Fprint(w, "<p>No profiles are configured.</p>")
		} else {
			fmt.Fprint(w, "<table><thead><tr><th>Name</th><th>Supplier</th><th>Currency</th><th>Mapped</th><th>Ignored</th><th>Required</th><th>Price range</th></tr></thead><tbody>")
			for _, s := range summaries {
				fmt.Fprintf(w, "<tr><td><code>%s</code></td><td>%s</td><td>%s</td><td>%d</td><td>%d</td><td>%s</td><td>%s</td></tr>",
					e(s.Name), e(s.SupplierName), e(s.Currency), s.MappedColumns, s.IgnoredColumns,
					e(fmt.Sprint(s.RequiredColumns)), e(priceRange(s)))
			}
			fmt.Fprint(w, "</tbody></table>")
		}
		for _, name := range slices.Sorted(maps.Keys(broken)) {
			fmt.Fprintf(w, "<p class=\"err\"><code>%s</code>: %s</p>", e(name), e(broken[name].Error()))
		}
		_, err := fmt.Fprint(w, "<h2>Normalize a file</h2>"+
			"<p><code>POST /api/normalize/{profile}</code> with a multipart <code>file</code> (CSV or XLSX), "+
			"or <code>POST /api/normalize</code> to pick the profile from the file name and headers.</p>")
		return err
	}))
}

// errorPage renders a user message for browser requests.
func errorPage(msg normalize.UserMessage) templ.Component {
	return layout("Error", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, "<h1 class=\"err\">%s</h1><p>%s</p><p>Code: <code>%s</code></p>",
			templ.EscapeString(msg.Message), templ.EscapeString(msg.Action), templ.EscapeString(msg.Code))
		return err
	}))
}

func priceRange(s profile.Summary) string {
	if s.PriceMin == nil && s.PriceMax == nil {
		return ""
	}
	lo, hi := "-inf", "+inf"
	if s.PriceMin != nil {
		lo = fmt.Sprint(*s.PriceMin)
	}
	if s.PriceMax != nil {
		hi = fmt.Sprint(*s.PriceMax)
	}
	return "[" + lo + ", " + hi + "]"
}
