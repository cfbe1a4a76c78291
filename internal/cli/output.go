// Package cli provides output formatting for the arxiv-agent command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dawenl/arxiv-agent/internal/models"
	"github.com/dawenl/arxiv-agent/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat converts a --format flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format: %s", s)
	}
}

// WritePapers writes ranked papers to w in the given format.
func WritePapers(w io.Writer, papers []*models.Paper, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(papers)
	}
	writePapersText(w, papers)
	return nil
}

func writePapersText(w io.Writer, papers []*models.Paper) {
	if len(papers) == 0 {
		fmt.Fprintln(w, "No matching papers.")
		return
	}
	fmt.Fprintf(w, "\n%d matching papers\n\n", len(papers))
	for i, p := range papers {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%d. [%.3f] %s\n", i+1, p.RelevanceScore, p.Title)
		fmt.Fprintf(w, "   %s", p.ID)
		if len(p.Categories) > 0 {
			fmt.Fprintf(w, " | %s", strings.Join(p.Categories, ", "))
		}
		fmt.Fprintln(w)
		if len(p.Authors) > 0 {
			fmt.Fprintf(w, "   %s\n", utils.Truncate(strings.Join(p.Authors, ", "), 120))
		}
		if p.Abstract != "" {
			fmt.Fprintf(w, "   %s\n", utils.Truncate(p.Abstract, 240))
		}
		fmt.Fprintf(w, "   %s\n\n", p.Link)
	}
}

// WriteAnchors writes the anchor list to w in the given format.
func WriteAnchors(w io.Writer, anchorSet []*models.Anchor, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(anchorSet)
	}
	writeAnchorsText(w, anchorSet)
	return nil
}

func writeAnchorsText(w io.Writer, anchorSet []*models.Anchor) {
	if len(anchorSet) == 0 {
		fmt.Fprintln(w, "No anchors. Add one with: arxiv-agent topics add \"<description>\"")
		return
	}
	fmt.Fprintf(w, "\n%d anchors\n\n", len(anchorSet))
	for _, a := range anchorSet {
		fmt.Fprintf(w, "  %s  [%s]  %s\n", a.ID, a.Kind, utils.Truncate(a.Title, 80))
	}
	fmt.Fprintln(w)
}
