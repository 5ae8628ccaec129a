// Package report persists and prints WorkflowResults.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

// FileWriter writes each result as output/result_YYYYMMDD_HHMMSS.json.
type FileWriter struct {
	dir string
}

var _ ports.ResultWriter = (*FileWriter)(nil)

// NewFileWriter targets dir, created on first write.
func NewFileWriter(dir string) *FileWriter {
	return &FileWriter{dir: dir}
}

// FileName is the artifact name for a run started at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("result_%s.json", t.Format("20060102_150405"))
}

// WriteResult writes the artifact once; an existing file is never appended to
// or overwritten.
func (w *FileWriter) WriteResult(_ context.Context, result domain.WorkflowResult) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}

	path := filepath.Join(w.dir, FileName(result.StartedAt))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create result file: %w", err)
	}
	if _, err := f.Write(append(payload, '\n')); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write result file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close result file: %w", err)
	}
	return path, nil
}
