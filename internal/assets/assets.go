// Package assets embeds static files shared by the web pages and the PDF reports.
package assets

import _ "embed"

//go:embed logo.svg
var LogoSVG []byte

const (
	ProductName = "OralVis Healthcare"
	ReportTitle = ProductName + " - Scan Report"
)
