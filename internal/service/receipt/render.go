package receipt

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const textWidth = 40

// RenderText печатает чек фиксированной ширины для чекового принтера.
func RenderText(w io.Writer, view View) error {
	return renderText(w, view, defaultFormatter)
}

func renderText(w io.Writer, view View, f *Formatter) error {
	var b strings.Builder
	rule := strings.Repeat("-", textWidth)

	b.WriteString(center(view.SellerName) + "\n")
	b.WriteString(center("Receipt "+view.Reference) + "\n")
	if !view.IssuedAt.IsZero() {
		b.WriteString(center(view.IssuedAt.UTC().Format("2006-01-02 15:04:05 UTC")) + "\n")
	}
	if view.Voided {
		b.WriteString(center("*** VOIDED ***") + "\n")
	}
	b.WriteString(rule + "\n")

	for _, line := range view.Lines {
		b.WriteString(truncate(line.Name, textWidth) + "\n")
		qty := fmt.Sprintf("  %d x %s", line.Quantity, f.Money(line.UnitPrice, view.Currency))
		b.WriteString(justify(qty, f.Money(line.LineTotal, view.Currency)) + "\n")
	}

	b.WriteString(rule + "\n")
	b.WriteString(justify("Subtotal", f.Money(view.Subtotal, view.Currency)) + "\n")
	b.WriteString(justify("Commission", f.Money(view.Commission, view.Currency)) + "\n")
	b.WriteString(justify("VAT", f.Money(view.VAT, view.Currency)) + "\n")
	b.WriteString(justify("TOTAL", f.Money(view.Total, view.Currency)) + "\n")
	b.WriteString(justify("Items", fmt.Sprint(view.ItemCount)) + "\n")
	b.WriteString(justify("Paid by", view.PaymentMethod) + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

var htmlTemplate = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"money": func(v View, amount decimal.Decimal) string {
		return defaultFormatter.Money(amount, v.Currency)
	},
	"datetime": func(v View) string {
		if v.IssuedAt.IsZero() {
			return ""
		}
		return v.IssuedAt.UTC().Format("2006-01-02 15:04:05 UTC")
	},
}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Receipt {{.Reference}}</title></head>
<body>
<h1>{{.SellerName}}</h1>
<p class="reference">Receipt {{.Reference}}</p>
<p class="issued">{{datetime .}}</p>
{{if .Voided}}<p class="voided">VOIDED</p>{{end}}
<table>
<thead><tr><th>Item</th><th>Qty</th><th>Unit price</th><th>Total</th></tr></thead>
<tbody>
{{- range .Lines}}
<tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{money $ .UnitPrice}}</td><td>{{money $ .LineTotal}}</td></tr>
{{- end}}
</tbody>
</table>
<dl>
<dt>Subtotal</dt><dd>{{money . .Subtotal}}</dd>
<dt>Commission</dt><dd>{{money . .Commission}}</dd>
<dt>VAT</dt><dd>{{money . .VAT}}</dd>
<dt>Total</dt><dd class="total">{{money . .Total}}</dd>
<dt>Paid by</dt><dd>{{.PaymentMethod}}</dd>
</dl>
</body>
</html>
`))

// RenderHTML экспортирует чек в HTML-документ.
func RenderHTML(w io.Writer, view View) error {
	return htmlTemplate.Execute(w, view)
}

func justify(left, right string) string {
	pad := textWidth - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	if pad < 1 {
		pad = 1
	}
	return left + strings.Repeat(" ", pad) + right
}

func center(s string) string {
	s = truncate(s, textWidth)
	pad := (textWidth - utf8.RuneCountInString(s)) / 2
	return strings.Repeat(" ", pad) + s
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
