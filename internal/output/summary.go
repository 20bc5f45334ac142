package output

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/yairfalse/apidrift/pkg/types"
)

// SummaryFormatter renders human-readable terminal output
type SummaryFormatter struct {
	config Config

	red    *color.Color
	yellow *color.Color
	green  *color.Color
	cyan   *color.Color
	faint  *color.Color
	bold   *color.Color
}

// NewSummaryFormatter creates a new summary formatter
func NewSummaryFormatter(config Config) *SummaryFormatter {
	if config.TimeFormat == "" {
		config.TimeFormat = DefaultConfig().TimeFormat
	}

	s := &SummaryFormatter{
		config: config,
		red:    color.New(color.FgRed, color.Bold),
		yellow: color.New(color.FgYellow),
		green:  color.New(color.FgGreen),
		cyan:   color.New(color.FgCyan),
		faint:  color.New(color.FgHiBlack),
		bold:   color.New(color.Bold),
	}
	if config.NoColor {
		for _, c := range []*color.Color{s.red, s.yellow, s.green, s.cyan, s.faint, s.bold} {
			c.DisableColor()
		}
	}
	return s
}

// FormatResult formats a run result as a per-package summary
func (s *SummaryFormatter) FormatResult(result *types.AnalysisResult) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s\n", s.bold.Sprint("API Drift Report"))
	fmt.Fprintf(&buf, "================\n")
	if result.Branch != "" || result.CommitHash != "" {
		fmt.Fprintf(&buf, "Branch: %s  Commit: %s\n", orDash(result.Branch), orDash(shortHash(result.CommitHash)))
	}
	fmt.Fprintf(&buf, "Generated: %s\n\n", result.GeneratedAt.Format(s.config.TimeFormat))

	if len(result.Packages) == 0 && len(result.Skipped) == 0 {
		fmt.Fprintf(&buf, "No packages analyzed.\n")
	}

	for i := range result.Packages {
		s.writePackage(&buf, &result.Packages[i])
	}

	if len(result.Skipped) > 0 {
		fmt.Fprintf(&buf, "%s\n", s.yellow.Sprint("Skipped packages:"))
		for _, sk := range result.Skipped {
			fmt.Fprintf(&buf, "  - %s: %s\n", sk.Package, s.faint.Sprint(sk.Reason))
		}
		fmt.Fprintln(&buf)
	}

	sum := result.Summary
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Packages:\t%d (%d with changes)\n", sum.TotalPackages, sum.PackagesWithChanges)
	fmt.Fprintf(w, "Breaking:\t%d\n", sum.BreakingChanges)
	fmt.Fprintf(w, "Non-breaking:\t%d\n", sum.NonBreakingChanges)
	fmt.Fprintf(w, "Additions:\t%d\n", sum.Additions)
	fmt.Fprintf(w, "Suppressed:\t%d\n", sum.SuppressedChanges)
	w.Flush()

	fmt.Fprintln(&buf)
	if sum.CIShouldFail {
		fmt.Fprintf(&buf, "%s\n", s.red.Sprint("Result: FAIL"))
	} else {
		fmt.Fprintf(&buf, "%s\n", s.green.Sprint("Result: PASS"))
	}

	return buf.Bytes(), nil
}

func (s *SummaryFormatter) writePackage(buf *bytes.Buffer, p *types.PackageAnalysis) {
	header := p.Package.Name
	if p.Package.Version != "" {
		header += "@" + p.Package.Version
	}
	status := s.green.Sprint("no changes")
	switch {
	case p.HasGatingChanges():
		status = s.red.Sprint("breaking")
	case p.HasBreakingChanges:
		status = s.yellow.Sprint("breaking (suppressed)")
	case len(p.Changes) > 0:
		status = s.cyan.Sprint("compatible")
	}
	if p.IsNewPackage {
		status += s.faint.Sprint(" (new package)")
	}
	fmt.Fprintf(buf, "%s  %s\n", s.bold.Sprint(header), status)

	for _, c := range p.Changes {
		fmt.Fprintf(buf, "  %s %s %s\n", s.marker(c), c.Description, s.faint.Sprintf("[%s]", c.ID))
		if c.IsSuppressed {
			fmt.Fprintf(buf, "      %s\n", s.faint.Sprintf("suppressed: %s", c.SuppressionReason))
		}
	}

	bump := fmt.Sprintf("recommended %s", p.RecommendedVersionBump)
	if p.BumpValidated {
		bump += fmt.Sprintf(", actual %s", p.ActualVersionBump)
	}
	if p.BumpValidated && !p.IsValidBump {
		fmt.Fprintf(buf, "  Version bump: %s\n", s.red.Sprint(bump+" (invalid)"))
	} else {
		fmt.Fprintf(buf, "  Version bump: %s\n", bump)
	}
	for _, r := range p.BumpReasons {
		fmt.Fprintf(buf, "    %s\n", s.faint.Sprint(r))
	}
	fmt.Fprintln(buf)
}

func (s *SummaryFormatter) marker(c types.Change) string {
	switch {
	case c.IsSuppressed:
		return s.faint.Sprint("~")
	case c.Type == types.ChangeBreaking:
		return s.red.Sprint("✗")
	case c.Type == types.ChangeAddition:
		return s.green.Sprint("+")
	default:
		return s.cyan.Sprint("•")
	}
}

// FormatSnapshotList formats stored snapshots as a table
func (s *SummaryFormatter) FormatSnapshotList(packageName string, snapshots []types.SnapshotMetadata) ([]byte, error) {
	var buf bytes.Buffer
	if len(snapshots) == 0 {
		fmt.Fprintf(&buf, "No snapshots stored for %s.\n", packageName)
		return buf.Bytes(), nil
	}

	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Commit\tBranch\tVersion\tStored\tSize\n")
	fmt.Fprintf(w, "------\t------\t-------\t------\t----\n")
	for _, m := range snapshots {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			shortHash(m.CommitHash), orDash(m.Branch), orDash(m.Version),
			m.Timestamp.Format(s.config.TimeFormat), formatBytes(m.FileSize))
	}
	w.Flush()
	return buf.Bytes(), nil
}

// FormatHealth formats backend health as a table
func (s *SummaryFormatter) FormatHealth(health []types.StorageHealth) ([]byte, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Backend\tKind\tStatus\tLatency\tLast Check\n")
	fmt.Fprintf(w, "-------\t----\t------\t-------\t----------\n")
	for _, h := range health {
		status := s.green.Sprint("healthy")
		if !h.Healthy {
			status = s.red.Sprint("unhealthy")
		}
		last := "-"
		if !h.LastCheck.IsZero() {
			last = h.LastCheck.Format(s.config.TimeFormat)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", h.Backend, h.Kind, status, h.Latency.Round(time.Millisecond), last)
	}
	w.Flush()

	for _, h := range health {
		if h.Error != "" {
			fmt.Fprintf(&buf, "%s %s\n", s.yellow.Sprintf("%s:", h.Backend), h.Error)
		}
	}
	return buf.Bytes(), nil
}

// FormatStats formats storage statistics
func (s *SummaryFormatter) FormatStats(stats types.StorageStats) ([]byte, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Snapshots:\t%d\n", stats.SnapshotCount)
	fmt.Fprintf(w, "Total size:\t%s\n", formatBytes(stats.TotalSize))
	if stats.SnapshotCount > 0 {
		fmt.Fprintf(w, "Oldest:\t%s\n", stats.OldestSnapshot.Format(s.config.TimeFormat))
		fmt.Fprintf(w, "Newest:\t%s\n", stats.NewestSnapshot.Format(s.config.TimeFormat))
	}
	w.Flush()
	return buf.Bytes(), nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
