package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

var templates = template.Must(template.New("notify").Parse(`
{{define "order_confirmation"}}
<h2>Thanks for your order, {{.FirstName}}!</h2>
<p>Order <strong>{{.OrderNumber}}</strong> is confirmed.</p>
<ul>
{{range .Items}}<li>{{.Quantity}} &times; {{.Title}} &mdash; {{.Price}}</li>
{{end}}</ul>
<p>Total: <strong>{{.Total}}</strong></p>
{{if .HasPhysicalItems}}<p>Your physical items will ship shortly.</p>{{end}}
{{end}}

{{define "fulfillment_alert"}}
<h2>New order to fulfill</h2>
<p>Order <strong>{{.OrderNumber}}</strong> contains physical items.</p>
<ul>
{{range .Items}}<li>{{.Quantity}} &times; {{.Title}}{{if .Size}} ({{.Size}}{{if .Color}}/{{.Color}}{{end}}){{end}}</li>
{{end}}</ul>
{{end}}

{{define "payee_sale"}}
<h2>You made a sale!</h2>
<p>Order <strong>{{.OrderNumber}}</strong> includes your items:</p>
<ul>
{{range .Items}}<li>{{.Quantity}} &times; {{.Title}}</li>
{{end}}</ul>
<p>Your share: <strong>{{.Amount}}</strong></p>
{{end}}

{{define "pending_earnings"}}
<h2>You have pending earnings</h2>
<p>You earned <strong>{{.Amount}}</strong>, but we have no payout method on file.</p>
<p>Connect a payout account in your dashboard to receive it.</p>
{{end}}

{{define "payout_reversed"}}
<h2>A payout was reversed</h2>
<p>Order <strong>{{.OrderNumber}}</strong> was refunded or disputed and
<strong>{{.Amount}}</strong> was reversed from your payout.</p>
{{end}}
`))

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
