package services

import "html/template"

var receiptTmpl = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"money": money,
}).Parse(`<h1>Thank you for your order, {{.CustomerName}}!</h1>
<h2>Order #{{.OrderID}}</h2>
<h3>Items:</h3>
<ul>
{{- range .Items}}
  <li>{{.Name}} x{{.Quantity}} - ${{money .Price}}</li>
{{- end}}
</ul>
{{- if .SpecialInstructions}}
<p>Special instructions: {{.SpecialInstructions}}</p>
{{- end}}
<h3>Total: ${{money .Total}}</h3>
<h4>Order Date: {{.Date}}</h4>
<p>If you have any questions, feel free to contact us.</p>
<p>Thank you for ordering with us!</p>
`))

var accountTmpl = template.Must(template.New("account").Parse(`<p>Hello {{.Name}},</p>
<p>{{.Intro}}</p>
<p><a href="{{.Link}}">{{.Action}}</a></p>
<p>If you did not ask for this, you can ignore this email.</p>
`))
