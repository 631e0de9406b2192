package export

import (
	"bytes"
	"html/template"
	"strings"
)

var sheetTemplate = template.Must(template.New("sheet").Funcs(template.FuncMap{
	"lower": strings.ToLower,
}).Parse(sheetHTML))

// RenderSheetHTML renders sheet as a standalone HTML page.
func RenderSheetHTML(sheet Sheet) (string, error) {
	var buf bytes.Buffer
	if err := sheetTemplate.Execute(&buf, sheet); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const sheetHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.5; max-width: 800px; margin: 2rem auto; color: #222; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    table { width: 100%; border-collapse: collapse; margin-bottom: 1.5rem; }
    th, td { text-align: left; padding: 0.4rem; border-bottom: 1px solid #ddd; vertical-align: top; }
    .price { white-space: nowrap; }
    .dream { font-weight: bold; }
    .status-claimed, .status-pending { color: #999; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">Version {{.Version}} | {{.Total}} gifts</div>
  {{range .Sections}}
  <h2>{{.Title}}</h2>
  <table>
    <tr><th>Gift</th><th>Price</th><th>Status</th></tr>
    {{range .Gifts}}
    <tr class="status-{{lower .Status}}">
      <td{{if .Dream}} class="dream"{{end}}>{{.Title}}{{if .Description}}<br><small>{{.Description}}</small>{{end}}</td>
      <td class="price">{{.Price}}</td>
      <td>{{.Status}}</td>
    </tr>
    {{end}}
  </table>
  {{end}}
</body>
</html>`
