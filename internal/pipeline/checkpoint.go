package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Phase names a checkpoint's position within the six-stage run, for
// diagnostics; the actual resume behavior only consults
// ProcessedFiles.
type Phase string

const (
	PhaseDiscovery Phase = "discovery"
	PhaseChunking  Phase = "chunking"
	PhaseEmbedding Phase = "embedding"
	PhaseUpsert    Phase = "upsert"
	PhaseManifest  Phase = "manifest"
	PhaseComplete  Phase = "complete"
)

// Checkpoint is the persisted {project_hash, phase, processed_files}
// record spec.md C8 describes: "after each successful manifest
// update, the pipeline may persist its current position; on restart
// with the same project hash, it resumes from the last checkpoint and
// skips files whose manifest hash matches." Grounded on the teacher's
// discovery/manifest.go write-tmp-then-rename + flock pattern
// (itself grounded on the teacher's internal/daemon/singleton.go
// lock-file convention), reused verbatim for this second on-disk
// record rather than inventing a new persistence scheme. The record
// holds the list of processed paths; it stores no separate position.
type Checkpoint struct {
	ProjectHash    string   `json:"project_hash"`
	Phase          Phase    `json:"phase"`
	ProcessedFiles []string `json:"processed_files"`

	path string
}

// LoadCheckpoint reads a checkpoint from path. A missing file is not
// an error: it means this is the project's first indexing run.
func LoadCheckpoint(path string, projectHash string) (*Checkpoint, error) {
	cp := &Checkpoint{ProjectHash: projectHash, path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cp, nil
		}
		return nil, fmt.Errorf("pipeline: failed to read checkpoint %s: %w", path, err)
	}

	var onDisk Checkpoint
	if err := json.Unmarshal(data, &onDisk); err != nil {
		return nil, fmt.Errorf("pipeline: failed to parse checkpoint %s: %w", path, err)
	}

	// A checkpoint from a different project (path moved, or a
	// different tree entirely) is stale and gives no resume
	// information.
	if onDisk.ProjectHash != projectHash {
		return cp, nil
	}
	onDisk.path = path
	return &onDisk, nil
}

// ShouldSkip reports whether filePath was already fully processed
// according to this checkpoint and can be skipped on resume, provided
// its current discovery content hash still matches the manifest entry
// recorded for it (the caller is responsible for that comparison;
// Checkpoint only tracks which paths reached Stage 6).
func (c *Checkpoint) ShouldSkip(filePath string) bool {
	for _, p := range c.ProcessedFiles {
		if p == filePath {
			return true
		}
	}
	return false
}

// MarkProcessed records filePath as having completed Stage 6 (manifest
// update) and persists the checkpoint, matching spec.md's "after each
// successful manifest update, the pipeline may persist its current
// position".
func (c *Checkpoint) MarkProcessed(filePath string, phase Phase) error {
	c.ProcessedFiles = append(c.ProcessedFiles, filePath)
	c.Phase = phase
	return c.save()
}

func (c *Checkpoint) save() error {
	if c.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("pipeline: failed to marshal checkpoint: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("pipeline: failed to create checkpoint directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, ".checkpoint.lock"))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("pipeline: failed to acquire checkpoint lock: %w", err)
	}
	defer lock.Unlock()

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("pipeline: failed to write checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("pipeline: failed to rename checkpoint into place: %w", err)
	}
	return nil
}
