package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// ManifestSchemaVersion is bumped whenever the on-disk Manifest
// structure changes incompatibly.
const ManifestSchemaVersion = 1

// EmbeddingState records, per modality, whether a file's chunks have
// been embedded and under which model name, so a model change can be
// detected without a separate migration step (spec.md C9: "using the
// currently configured dense_model and sparse_model names").
type EmbeddingState struct {
	Dense       bool   `json:"dense"`
	DenseModel  string `json:"dense_model,omitempty"`
	Sparse      bool   `json:"sparse"`
	SparseModel string `json:"sparse_model,omitempty"`
}

// Complete reports whether every configured, currently-named modality
// is embedded. An empty currentModel means that modality isn't
// configured at all. A non-matching recorded model name is treated as
// missing, which is what lets reconciliation pick it back up after a
// model swap without a full reindex.
func (s EmbeddingState) Complete(currentDenseModel, currentSparseModel string) bool {
	if currentDenseModel != "" && (!s.Dense || s.DenseModel != currentDenseModel) {
		return false
	}
	if currentSparseModel != "" && (!s.Sparse || s.SparseModel != currentSparseModel) {
		return false
	}
	return true
}

// FileEntry is one manifest record.
type FileEntry struct {
	Path           string         `json:"path"`
	ContentHash    string         `json:"content_hash"`
	ChunkIDs       []string       `json:"chunk_ids"`
	EmbeddingState EmbeddingState `json:"embedding_state"`
}

// Manifest is the persisted, per-project index of known files. It is
// the authoritative record of what is stored in the vector store
// (spec.md §3 ownership rules). Load reads and parses the whole file
// as soon as it is called (there is no deferred loading); written atomically via
// write-tmp-then-rename, and guarded by a cross-process gofrs/flock
// lock during writes, grounded on the teacher's internal/embed/lock.go
// FileLock and internal/daemon/singleton.go lock-file patterns.
type Manifest struct {
	mu sync.RWMutex

	Version int                  `json:"version"`
	Files   map[string]FileEntry `json:"files"`

	path string
}

// Load reads a Manifest from path, returning a fresh empty Manifest
// if the file does not yet exist (first index of a project).
func Load(path string) (*Manifest, error) {
	m := &Manifest{Version: ManifestSchemaVersion, Files: make(map[string]FileEntry), path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("discovery: failed to read manifest %s: %w", path, err)
	}

	var onDisk struct {
		Version int                  `json:"version"`
		Files   map[string]FileEntry `json:"files"`
	}
	if err := json.Unmarshal(data, &onDisk); err != nil {
		return nil, fmt.Errorf("discovery: failed to parse manifest %s: %w", path, err)
	}
	m.Version = onDisk.Version
	if onDisk.Files != nil {
		m.Files = onDisk.Files
	}
	return m, nil
}

// KnownHashes returns a path->content_hash snapshot for DiffAgainst.
func (m *Manifest) KnownHashes() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.Files))
	for path, entry := range m.Files {
		out[path] = entry.ContentHash
	}
	return out
}

// Upsert records or updates a file's manifest entry.
func (m *Manifest) Upsert(entry FileEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Files[entry.Path] = entry
}

// Remove deletes a file's manifest entry, the manifest-side half of
// spec.md C7's "removing a file deletes all chunks ... and drops the
// manifest entry" (the vector-store-side delete is the caller's
// responsibility, coordinated by the Indexing Pipeline).
func (m *Manifest) Remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Files, path)
}

// Reset clears every known file entry, making the next diff treat the
// whole tree as newly added. This is how `reindex(force=true)`
// (spec.md §6) is implemented: a forced reindex needs every file's
// chunks recomputed and re-upserted rather than just the files the
// content-hash diff says changed.
func (m *Manifest) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Files = make(map[string]FileEntry)
}

// Get returns a file's entry and whether it exists.
func (m *Manifest) Get(path string) (FileEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.Files[path]
	return e, ok
}

// Partition describes which files still need embedding work, by
// modality, per spec.md C9's reconciliation inputs.
type Partition struct {
	DenseOnlyMissing  []string
	SparseOnlyMissing []string
	BothMissing       []string
	Complete          []string
}

// PartitionByEmbeddingState buckets every manifest entry by which
// modality (if any) still needs embedding, given the currently
// configured dense_model/sparse_model names (spec.md C9). An empty
// model name means that modality isn't configured at all. A recorded
// model name that doesn't match the current one counts as missing,
// which is what lets reconciliation pick a file back up after a model
// swap without a full reindex.
func (m *Manifest) PartitionByEmbeddingState(currentDenseModel, currentSparseModel string) Partition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var p Partition
	for path, entry := range m.Files {
		needDense := currentDenseModel != "" && (!entry.EmbeddingState.Dense || entry.EmbeddingState.DenseModel != currentDenseModel)
		needSparse := currentSparseModel != "" && (!entry.EmbeddingState.Sparse || entry.EmbeddingState.SparseModel != currentSparseModel)
		switch {
		case needDense && needSparse:
			p.BothMissing = append(p.BothMissing, path)
		case needDense:
			p.DenseOnlyMissing = append(p.DenseOnlyMissing, path)
		case needSparse:
			p.SparseOnlyMissing = append(p.SparseOnlyMissing, path)
		default:
			p.Complete = append(p.Complete, path)
		}
	}
	return p
}

// Save writes the manifest atomically: acquire a cross-process lock,
// write to a temp file in the same directory, then rename over the
// target (spec.md C7: "written atomically (write-tmp-then-rename)").
func (m *Manifest) Save() error {
	m.mu.RLock()
	data, err := json.MarshalIndent(struct {
		Version int                  `json:"version"`
		Files   map[string]FileEntry `json:"files"`
	}{Version: m.Version, Files: m.Files}, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("discovery: failed to marshal manifest: %w", err)
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("discovery: failed to create manifest directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, ".manifest.lock"))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("discovery: failed to acquire manifest lock: %w", err)
	}
	defer lock.Unlock()

	tmpPath := m.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("discovery: failed to write manifest temp file: %w", err)
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		return fmt.Errorf("discovery: failed to rename manifest into place: %w", err)
	}
	return nil
}
