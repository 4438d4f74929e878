package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tanuj-rai/matrixci/internal/core"
	"github.com/tanuj-rai/matrixci/internal/history"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	skipStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	cancelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
)

func statusStyle(status core.Status) lipgloss.Style {
	switch status {
	case core.StatusSuccess:
		return okStyle
	case core.StatusFailure:
		return failStyle
	case core.StatusCancelled:
		return cancelStyle
	default:
		return skipStyle
	}
}

func renderPlan(kept []core.JobSpec, skipped []core.JobResult) {
	fmt.Println(headerStyle.Render(fmt.Sprintf("plan: %d jobs, %d skipped", len(kept), len(skipped))))
	current := ""
	for _, spec := range kept {
		if spec.Category != current {
			current = spec.Category
			fmt.Println(headerStyle.Render("  " + current))
		}
		fmt.Printf("    %s\n", spec.Name())
		fmt.Printf("      %s\n", dimStyle.Render(core.CommandLine(spec)))
	}
	if len(skipped) > 0 {
		fmt.Println(headerStyle.Render("  skipped"))
		for _, res := range skipped {
			fmt.Printf("    %s\n", skipStyle.Render(res.JobName+" ("+res.Cause+")"))
		}
	}
}

func renderReport(runID string, rep core.RunReport, uploadErr string) {
	fmt.Println(headerStyle.Render("run " + runID))
	for _, res := range rep.Results {
		line := fmt.Sprintf("  %-10s %s", res.Status, res.JobName)
		if res.Cause != "" {
			line += " (" + res.Cause + ")"
		}
		fmt.Println(statusStyle(res.Status).Render(line))
	}

	summary := fmt.Sprintf("verdict: %s  (%d ok, %d failed, %d cancelled, %d skipped)",
		rep.Verdict, rep.Succeeded, rep.Failed, rep.Cancelled, rep.Skipped)
	if rep.Verdict == core.VerdictSuccess {
		fmt.Println(okStyle.Render(summary))
	} else {
		fmt.Println(failStyle.Render(summary))
	}
	if uploadErr != "" {
		fmt.Println(cancelStyle.Render("upload error: " + uploadErr))
	}
}

func renderHistory(entries []*history.Entry) {
	if len(entries) == 0 {
		fmt.Println(dimStyle.Render("no runs recorded"))
		return
	}
	for _, e := range entries {
		style := okStyle
		if e.Verdict != string(core.VerdictSuccess) {
			style = failStyle
		}
		hash := e.Hash
		if len(hash) > 16 {
			hash = hash[:16]
		}
		fmt.Println(style.Render(fmt.Sprintf("%3d  %s  %-8s %s", e.Index, e.Timestamp, e.Verdict, e.RunID)) +
			dimStyle.Render("  "+hash) + renderCounts(e))
	}
}

func renderCounts(e *history.Entry) string {
	parts := []string{fmt.Sprintf("%d ok", e.Succeeded)}
	if e.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", e.Failed))
	}
	if e.Cancelled > 0 {
		parts = append(parts, fmt.Sprintf("%d cancelled", e.Cancelled))
	}
	if e.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", e.Skipped))
	}
	return dimStyle.Render("  [" + strings.Join(parts, ", ") + "]")
}
