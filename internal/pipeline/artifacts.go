package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/testimony-project/testimony/internal/tags"
)

// Artifacts names the files written by one clean pass.
type Artifacts struct {
	DeidentifiedPath string
	MappingPath      string
	TagsPath         string
	SummaryPath      string
}

// CleanFile runs Clean over the transcript at inputPath and persists the
// artifact set under outDir. Every file is written to a temporary name and
// renamed into place, so readers never observe a half-written artifact.
func (p *Pipeline) CleanFile(ctx context.Context, inputPath, outDir, runID string) (*Result, Artifacts, error) {
	raw, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, Artifacts{}, fmt.Errorf("pipeline: read transcript: %w", err)
	}

	result, err := p.Clean(ctx, filepath.Base(inputPath), runID, string(raw))
	if err != nil {
		return nil, Artifacts{}, err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, Artifacts{}, fmt.Errorf("pipeline: create output dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	arts := Artifacts{
		DeidentifiedPath: filepath.Join(outDir, base+"_deidentified.txt"),
		MappingPath:      filepath.Join(outDir, base+"_mapping.json"),
		TagsPath:         filepath.Join(outDir, base+"_tags.csv"),
		SummaryPath:      filepath.Join(outDir, base+"_summary.json"),
	}

	if err := writeAtomic(arts.DeidentifiedPath, []byte(result.Text), 0o644); err != nil {
		return nil, Artifacts{}, err
	}
	if err := result.Table.WriteFile(arts.MappingPath, runID); err != nil {
		return nil, Artifacts{}, fmt.Errorf("pipeline: write mapping: %w", err)
	}

	var csvBuf strings.Builder
	if err := tags.WriteCSV(&csvBuf, result.Tags); err != nil {
		return nil, Artifacts{}, fmt.Errorf("pipeline: encode tags: %w", err)
	}
	if err := writeAtomic(arts.TagsPath, []byte(csvBuf.String()), 0o644); err != nil {
		return nil, Artifacts{}, err
	}

	summary, err := json.MarshalIndent(result.Summary, "", "  ")
	if err != nil {
		return nil, Artifacts{}, fmt.Errorf("pipeline: encode summary: %w", err)
	}
	if err := writeAtomic(arts.SummaryPath, append(summary, '\n'), 0o644); err != nil {
		return nil, Artifacts{}, err
	}

	return result, arts, nil
}

// writeAtomic writes to a sibling temp file and renames it into place.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("pipeline: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("pipeline: write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("pipeline: chmod %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("pipeline: close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("pipeline: commit %s: %w", filepath.Base(path), err)
	}
	return nil
}
