package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/miradorstack/mirador-sop/internal/models"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

var (
	noColor bool
	// summaryOut receives human-readable progress; the run report goes to stdout.
	summaryOut io.Writer = os.Stderr
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable coloured output")
}

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	fmt.Fprintln(summaryOut, colorize(colorGreen, "✓ "+fmt.Sprintf(format, args...)))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(summaryOut, colorize(colorYellow, "⚠ "+fmt.Sprintf(format, args...)))
}

func printError(format string, args ...any) {
	fmt.Fprintln(summaryOut, colorize(colorRed, "✗ "+fmt.Sprintf(format, args...)))
}

func printStatus(label string, format string, args ...any) {
	l := colorize(colorBold, label+":")
	fmt.Fprintf(summaryOut, "  %s %s\n", l, fmt.Sprintf(format, args...))
}

func printStep(format string, args ...any) {
	fmt.Fprintln(summaryOut, colorize(colorCyan, "→ "+fmt.Sprintf(format, args...)))
}

func printRunSummary(report models.RunReport, topTerms int) {
	result := report.Result
	acc := result.Accounting

	if report.Quality != nil {
		printStatus("Validated", "%d of %d records kept (quality %.1f%%)", report.Quality.Valid, report.Quality.Total, report.Quality.QualityScore)
	}
	printStatus("Run", "%s", result.RunID)
	printStatus("Incidents", "%d", acc.Total)
	printStatus("Clusters", "%d emitted, %d withheld", len(result.Clusters), len(result.Withheld))
	noise := 0.0
	if acc.Total > 0 {
		noise = 100 * float64(acc.Noise) / float64(acc.Total)
	}
	printStatus("Noise", "%d (%.1f%%)", acc.Noise, noise)

	for _, id := range result.SortedClusterIDs() {
		a := result.Clusters[id].Analysis
		terms := a.CommonPatterns
		if topTerms > 0 && len(terms) > topTerms {
			terms = terms[:topTerms]
		}
		hours := "n/a"
		if a.MedianResolutionHours != nil {
			hours = fmt.Sprintf("%.1fh", *a.MedianResolutionHours)
		}
		fmt.Fprintf(summaryOut, "  %s %d incidents, %s, median %s, e.g. %s [%s]\n",
			colorize(colorBold, fmt.Sprintf("#%d", id)), a.IncidentCount, a.TopCategory, hours, a.RepresentativeIncident, strings.Join(terms, ", "))
	}
	if len(result.Clusters) == 0 {
		printWarning("no cluster reached the output threshold")
	}
	if len(report.Duplicates) > 0 {
		printWarning("%d duplicate short descriptions detected", len(report.Duplicates))
	}
}

func printQuality(report models.QualityReport, invalid []models.InvalidIncident, duplicates []models.DuplicateGroup) {
	printStatus("Records", "%d", report.Total)
	printStatus("Valid", "%d", report.Valid)
	printStatus("Invalid", "%d", report.Invalid)
	printStatus("Quality", "%.1f%%", report.QualityScore)

	kinds := make([]string, 0, len(report.ErrorSummary))
	for kind := range report.ErrorSummary {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		printError("%s: %d", kind, report.ErrorSummary[kind])
	}
	for _, inv := range invalid {
		fmt.Fprintf(summaryOut, "    %s %s\n", inv.Incident.Number, strings.Join(inv.Errors, ", "))
	}
	for _, dup := range duplicates {
		printWarning("duplicate %q: %s", dup.Key, strings.Join(dup.Numbers, ", "))
	}
	if report.Invalid == 0 {
		printSuccess("all records passed validation")
	}
}
