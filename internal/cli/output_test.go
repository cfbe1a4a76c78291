package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/dawenl/arxiv-agent/internal/models"
)

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != OutputText {
		t.Errorf("empty: got %v, %v", f, err)
	}
	if f, err := ParseFormat("JSON"); err != nil || f != OutputJSON {
		t.Errorf("JSON: got %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWritePapers_Text(t *testing.T) {
	papers := []*models.Paper{{
		ID:             "2401.11111",
		Title:          "Sparse Attention at Scale",
		Abstract:       "We study sparse attention.",
		Authors:        []string{"Ada Lovelace"},
		Categories:     []string{"cs.LG"},
		Link:           "https://arxiv.org/abs/2401.11111",
		RelevanceScore: 0.8123,
	}}
	var buf bytes.Buffer
	if err := WritePapers(&buf, papers, OutputText); err != nil {
		t.Fatalf("WritePapers: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"2401.11111", "Sparse Attention at Scale", "0.812", "Ada Lovelace"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWritePapers_TextEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePapers(&buf, nil, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No matching papers") {
		t.Errorf("got %q", buf.String())
	}
}

func TestWritePapers_JSON(t *testing.T) {
	papers := []*models.Paper{{ID: "2401.11111", Title: "T", RelevanceScore: 0.5}}
	var buf bytes.Buffer
	if err := WritePapers(&buf, papers, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded []*models.Paper
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded) != 1 || decoded[0].ID != "2401.11111" {
		t.Errorf("got %+v", decoded)
	}
}

func TestWriteAnchors_Text(t *testing.T) {
	anchorSet := []*models.Anchor{
		{ID: "ab12cd34", Kind: models.KindTopic, Title: "sparse attention"},
	}
	var buf bytes.Buffer
	if err := WriteAnchors(&buf, anchorSet, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "ab12cd34") || !strings.Contains(out, "topic") {
		t.Errorf("got %q", out)
	}
}

func TestWriteAnchors_TextEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnchors(&buf, nil, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No anchors") {
		t.Errorf("got %q", buf.String())
	}
}
