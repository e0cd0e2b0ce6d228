package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/casefile-labs/bwc-pipeline/internal/domain/entities"
)

// Format identifies an export format
type Format string

const (
	FormatJSON     Format = "json"     // structured, machine-readable
	FormatText     Format = "text"     // plain narrative
	FormatMarkdown Format = "markdown" // lightly formatted document
)

// Formats lists every supported export format
func Formats() []Format {
	return []Format{FormatJSON, FormatText, FormatMarkdown}
}

// Render projects the frozen report into one format. Rendering is pure:
// no I/O, no mutation, identical input yields identical bytes.
func Render(r *entities.AnalysisReport, format Format) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, "", err
		}
		return data, "application/json", nil
	case FormatText:
		return []byte(renderText(r)), "text/plain", nil
	case FormatMarkdown:
		return []byte(renderMarkdown(r)), "text/markdown", nil
	default:
		return nil, "", fmt.Errorf("unsupported export format %q", format)
	}
}

// ObjectName derives the deterministic artifact name for an export. The
// name comes from the case/evidence identifiers, never from the raw
// evidence filename; without identifiers it falls back to the digest.
func ObjectName(r *entities.AnalysisReport, format Format) string {
	base := sanitizeIdentifier(r.CaseNumber)
	if ev := sanitizeIdentifier(r.EvidenceNumber); ev != "" {
		if base != "" {
			base += "_"
		}
		base += ev
	}
	if base == "" {
		base = shortDigest(r.Evidence.SHA256)
	}
	return fmt.Sprintf("%s_analysis.%s", base, extension(format))
}

func extension(format Format) string {
	switch format {
	case FormatJSON:
		return "json"
	case FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}

func sanitizeIdentifier(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ', r == '/', r == '#':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-_")
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

// ObjectStore is the artifact sink for exports
type ObjectStore interface {
	UploadBytes(ctx context.Context, objectName string, data []byte, contentType string) error
}

// Outcome is the per-format result of an export operation
type Outcome struct {
	Format     Format `json:"format"`
	ObjectName string `json:"object_name,omitempty"`
	SizeBytes  int    `json:"size_bytes,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Succeeded reports whether this format was written
func (o Outcome) Succeeded() bool {
	return o.Error == ""
}

// Exporter writes every format of a report to the object store. Failures
// are isolated per format: one format failing never prevents the others,
// and each failure is reported in its own outcome.
type Exporter struct {
	store  ObjectStore
	logger *zap.Logger
}

// NewExporter creates an exporter over the given store
func NewExporter(store ObjectStore, logger *zap.Logger) *Exporter {
	return &Exporter{store: store, logger: logger}
}

// ExportAll renders and writes all formats, returning one outcome per
// format in a fixed order
func (e *Exporter) ExportAll(ctx context.Context, r *entities.AnalysisReport) []Outcome {
	outcomes := make([]Outcome, 0, len(Formats()))

	for _, format := range Formats() {
		outcome := Outcome{Format: format, ObjectName: ObjectName(r, format)}

		data, contentType, err := Render(r, format)
		if err == nil {
			outcome.SizeBytes = len(data)
			err = e.store.UploadBytes(ctx, outcome.ObjectName, data, contentType)
		}
		if err != nil {
			outcome.Error = err.Error()
			if e.logger != nil {
				e.logger.Error("export format failed",
					zap.String("format", string(format)),
					zap.Error(err),
				)
			}
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes
}

func renderText(r *entities.AnalysisReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "FORENSIC ANALYSIS REPORT\n")
	fmt.Fprintf(&b, "Evidence SHA-256: %s\n", r.Evidence.SHA256)
	if r.CaseNumber != "" {
		fmt.Fprintf(&b, "Case: %s\n", r.CaseNumber)
	}
	if r.EvidenceNumber != "" {
		fmt.Fprintf(&b, "Evidence: %s\n", r.EvidenceNumber)
	}
	fmt.Fprintf(&b, "Analyzed: %s\n", r.AnalyzedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Acquired by %s from %s\n\n", r.Evidence.AcquiredBy, r.Evidence.Source)

	if r.FullyVerified() {
		b.WriteString("Status: fully verified\n")
	} else {
		b.WriteString("Status: DEGRADED\n")
		writeFlagLines(&b, r.Flags, "  - ")
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "  warning: %s\n", w)
	}

	fmt.Fprintf(&b, "\nDuration: %.1f seconds across %d segments, %d speaker(s)\n",
		r.Stats.DurationSeconds, r.Stats.SegmentCount, r.Stats.SpeakerCount)
	fmt.Fprintf(&b, "Discrepancies: %d total (%d critical, %d major, %d minor)\n\n",
		r.Stats.DiscrepancyTotal,
		r.Stats.DiscrepancyCounts[entities.SeverityCritical],
		r.Stats.DiscrepancyCounts[entities.SeverityMajor],
		r.Stats.DiscrepancyCounts[entities.SeverityMinor])

	b.WriteString("TRANSCRIPT\n")
	for _, seg := range r.Segments {
		marker := ""
		if seg.CrossTalk {
			marker = " [cross-talk]"
		}
		fmt.Fprintf(&b, "[%8.1fs] %s%s: %s\n", seg.Start, seg.SpeakerLabel, marker, seg.Text)
	}

	if len(r.Entities) > 0 {
		b.WriteString("\nENTITIES\n")
		for _, ent := range r.Entities {
			fmt.Fprintf(&b, "  %s: %s (segments %v)\n", ent.Category, ent.Value, ent.SegmentIndexes)
		}
	}

	if len(r.Discrepancies) > 0 {
		b.WriteString("\nDISCREPANCIES\n")
		for i, d := range r.Discrepancies {
			fmt.Fprintf(&b, "%d. [%s/%s] %s\n", i+1, d.Type, d.Severity, d.Description)
			fmt.Fprintf(&b, "   Recording: %s\n", d.EvidentiaryAssertion)
			fmt.Fprintf(&b, "   External (%s): %s\n", d.ExternalSource, d.ConflictingAssertion)
			if d.PotentialSignificance != "" {
				fmt.Fprintf(&b, "   Advisory: %s\n", d.PotentialSignificance)
			}
		}
	}

	return b.String()
}

func renderMarkdown(r *entities.AnalysisReport) string {
	var b strings.Builder

	b.WriteString("# Forensic Analysis Report\n\n")
	fmt.Fprintf(&b, "- **Evidence SHA-256:** `%s`\n", r.Evidence.SHA256)
	if r.CaseNumber != "" {
		fmt.Fprintf(&b, "- **Case:** %s\n", r.CaseNumber)
	}
	if r.EvidenceNumber != "" {
		fmt.Fprintf(&b, "- **Evidence:** %s\n", r.EvidenceNumber)
	}
	fmt.Fprintf(&b, "- **Analyzed:** %s\n", r.AnalyzedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- **Acquired by:** %s (%s)\n", r.Evidence.AcquiredBy, r.Evidence.Source)

	if r.FullyVerified() {
		b.WriteString("- **Status:** fully verified\n")
	} else {
		b.WriteString("- **Status:** degraded\n")
		writeFlagLines(&b, r.Flags, "  - ")
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "  - warning: %s\n", w)
	}

	b.WriteString("\n## Summary\n\n")
	fmt.Fprintf(&b, "%.1f seconds of audio across %d segments with %d speaker(s). ",
		r.Stats.DurationSeconds, r.Stats.SegmentCount, r.Stats.SpeakerCount)
	fmt.Fprintf(&b, "%d discrepancies detected (%d critical, %d major, %d minor).\n",
		r.Stats.DiscrepancyTotal,
		r.Stats.DiscrepancyCounts[entities.SeverityCritical],
		r.Stats.DiscrepancyCounts[entities.SeverityMajor],
		r.Stats.DiscrepancyCounts[entities.SeverityMinor])

	b.WriteString("\n## Transcript\n\n")
	for _, seg := range r.Segments {
		marker := ""
		if seg.CrossTalk {
			marker = " *(cross-talk)*"
		}
		fmt.Fprintf(&b, "**[%.1fs] %s**%s: %s\n\n", seg.Start, seg.SpeakerLabel, marker, seg.Text)
	}

	if len(r.Entities) > 0 {
		b.WriteString("## Entities\n\n")
		for _, ent := range r.Entities {
			fmt.Fprintf(&b, "- **%s** (%s)\n", ent.Value, ent.Category)
		}
		b.WriteString("\n")
	}

	if len(r.Discrepancies) > 0 {
		b.WriteString("## Discrepancies\n\n")
		for i, d := range r.Discrepancies {
			fmt.Fprintf(&b, "### %d. %s (%s)\n\n", i+1, d.Description, d.Severity)
			fmt.Fprintf(&b, "- Recording: %s\n", d.EvidentiaryAssertion)
			fmt.Fprintf(&b, "- External (%s): %s\n", d.ExternalSource, d.ConflictingAssertion)
			if d.PotentialSignificance != "" {
				fmt.Fprintf(&b, "- Advisory: %s\n", d.PotentialSignificance)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func writeFlagLines(b *strings.Builder, flags entities.ReportFlags, prefix string) {
	if flags.TranscriptionDegraded {
		fmt.Fprintf(b, "%stranscription degraded\n", prefix)
	}
	if flags.DiarizationDegraded {
		fmt.Fprintf(b, "%sdiarization degraded\n", prefix)
	}
	if flags.EntityExtractionDegraded {
		fmt.Fprintf(b, "%sentity extraction degraded\n", prefix)
	}
	if flags.DeadlineExceeded {
		fmt.Fprintf(b, "%swall-clock ceiling exceeded\n", prefix)
	}
}
