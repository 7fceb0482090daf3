// Package artifact reads the summary the external pipeline leaves behind.
package artifact

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	summaryJSON = "summary.json"

	// Companion documents are exposed by reference only; a missing file is a
	// client-side 404, not a server error.
	DocxURL = "/outputs/summary.docx"
	TexURL  = "/outputs/summary.tex"
)

// Summary is the artifact produced by one summarizer invocation.
type Summary struct {
	Bullets []string `json:"bullets"`
	DocxURL string   `json:"docxUrl"`
	TexURL  string   `json:"texUrl"`
}

// Reader loads summary artifacts from the output directory.
type Reader struct {
	outputDir string
	log       *slog.Logger
}

// NewReader constructs a Reader.
func NewReader(outputDir string, log *slog.Logger) *Reader {
	return &Reader{outputDir: outputDir, log: log}
}

// Read parses summary.json from the output directory. A missing or corrupt
// file yields an empty bullet list so one absent side-file never breaks the
// response.
func (r *Reader) Read() Summary {
	summary := Summary{
		Bullets: []string{},
		DocxURL: DocxURL,
		TexURL:  TexURL,
	}
	path := filepath.Join(r.outputDir, summaryJSON)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			r.log.Warn("summary artifact unreadable", "path", path, "error", err)
		}
		return summary
	}
	var payload struct {
		Bullets []string `json:"bullets"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		r.log.Warn("summary artifact corrupt", "path", path, "error", err)
		return summary
	}
	if payload.Bullets != nil {
		summary.Bullets = payload.Bullets
	}
	return summary
}
