// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"fnup-cli/internal/config"
	"fnup-cli/internal/provision"
)

// renderReport writes the deployment summary in the requested format.
func renderReport(w io.Writer, report *provision.Report, mode config.OutputMode) {
	if mode == config.OutputPlain {
		renderPlain(w, report)
		return
	}
	renderTable(w, report)
}

// renderTable writes the human-readable summary.
func renderTable(w io.Writer, report *provision.Report) {
	if report.Degraded {
		fmt.Fprintln(w, WarningStyle.Render("Function deployed (degraded: front door failed)"))
	} else {
		fmt.Fprintln(w, SuccessStyle.Render("Function deployed"))
	}
	fmt.Fprintln(w)

	row(w, "Function", report.FunctionName)
	row(w, "Locator", HighlightStyle.Render(report.Locator))
	row(w, "Region", report.Region)
	row(w, "Runtime", report.Runtime)
	row(w, "Handler", report.Handler)
	row(w, "Memory", fmt.Sprintf("%d MB", report.MemoryMB))
	row(w, "Timeout", fmt.Sprintf("%d s", report.TimeoutSec))
	if report.CodeSHA != "" {
		row(w, "Revision", report.CodeSHA)
	}
	if report.URL != "" {
		row(w, "URL", HighlightStyle.Render(report.URL))
	}
	if report.Degraded {
		fmt.Fprintln(w)
		fmt.Fprintln(w, WarningStyle.Render("Front door: ")+report.DegradedReason)
		fmt.Fprintln(w, SubtitleStyle.Render("Re-run the deploy to retry the front door; the function is unaffected."))
	}
}

func row(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render(label+":"), value)
}

// renderPlain writes the machine-readable key=value summary.
func renderPlain(w io.Writer, report *provision.Report) {
	fmt.Fprintf(w, "function=%s\n", report.FunctionName)
	fmt.Fprintf(w, "locator=%s\n", report.Locator)
	fmt.Fprintf(w, "region=%s\n", report.Region)
	fmt.Fprintf(w, "runtime=%s\n", report.Runtime)
	fmt.Fprintf(w, "handler=%s\n", report.Handler)
	fmt.Fprintf(w, "memory_mb=%d\n", report.MemoryMB)
	fmt.Fprintf(w, "timeout_sec=%d\n", report.TimeoutSec)
	if report.CodeSHA != "" {
		fmt.Fprintf(w, "code_sha=%s\n", report.CodeSHA)
	}
	if report.URL != "" {
		fmt.Fprintf(w, "url=%s\n", report.URL)
	}
	fmt.Fprintf(w, "degraded=%t\n", report.Degraded)
	if report.DegradedReason != "" {
		fmt.Fprintf(w, "degraded_reason=%s\n", report.DegradedReason)
	}
}
