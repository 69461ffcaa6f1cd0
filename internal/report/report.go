// Package report builds a Markdown summary of a solve and renders it to HTML.
package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"bisection/internal/format"
	"bisection/internal/solver"
)

// Input — параметры решения, попадающие в заголовок отчёта
type Input struct {
	Expr string
	XL   float64
	XR   float64
	Eps  float64
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// Markdown собирает отчёт: параметры, итог и таблицу итераций
func Markdown(in Input, res solver.Result, solveErr error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Bisection: `f(x) = %s`\n\n", strings.ReplaceAll(in.Expr, "`", "'"))
	fmt.Fprintf(&b, "- xl: %g\n- xr: %g\n- epsilon: %g\n\n", in.XL, in.XR, in.Eps)

	if solveErr != nil {
		fmt.Fprintf(&b, "**Error:** %s\n", solver.UserMessage(solveErr))
		return b.String()
	}

	fmt.Fprintf(&b, "**%s**\n\n", format.Headline(res))
	if res.CapReached {
		fmt.Fprintf(&b, "> Iteration cap of %d reached before the tolerance was met.\n\n", solver.MaxIterations)
	}
	if len(res.Trace) > 0 {
		b.WriteString(format.Trace(res, format.Markdown))
		b.WriteString("\n")
	}
	return b.String()
}

// HTML переводит Markdown-отчёт в самостоятельную HTML-страницу
func HTML(in Input, res solver.Result, solveErr error) ([]byte, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(Markdown(in, res, solveErr)), &body); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	page.WriteString(html.EscapeString("Bisection: " + in.Expr))
	page.WriteString("</title></head><body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body></html>\n")
	return page.Bytes(), nil
}
