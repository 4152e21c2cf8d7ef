package page

import (
	_ "embed"
	"html/template"
)

var (
	//go:embed chart.html
	chartHTML string
	//go:embed import.html
	importHTML string
)

var (
	chartTemplate  = template.Must(template.New("chart").Parse(chartHTML))
	importTemplate = template.Must(template.New("import").Parse(importHTML))
)
