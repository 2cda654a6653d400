// Package web holds the HTML templates and static assets compiled into the binary.
package web

import "embed"

// TemplatesFS embeds the page templates; layout.html is shared by all pages.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds the stylesheet served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
