package embedprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"
)

// LocalConfig configures a local subprocess-backed dense provider.
type LocalConfig struct {
	// BinaryPath is the embedding server executable to launch.
	BinaryPath string
	// Port is the HTTP port the embedding server listens on.
	Port int
	// Model is the model name reported by ModelName(), for manifest
	// embedding-state bookkeeping (spec.md C9).
	Model     string
	Dimension int
}

// LocalProvider is a DenseProvider backed by a local embedding server
// process, spoken to over HTTP. Grounded on the teacher's
// internal/embed/client/local.go LocalProvider and
// internal/embed/local.go localProvider: same lazy-start-subprocess,
// health-poll, POST-/embed shape, generalized to satisfy
// embedprovider.DenseProvider (separate EmbedDocuments/EmbedQueries,
// plus the batch/token limits the query and indexing pipelines both
// need) instead of the teacher's single combined Embed(mode) call.
type LocalProvider struct {
	cfg    LocalConfig
	client *http.Client

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewLocalProvider builds a LocalProvider; the subprocess is started
// lazily on first use, not here.
func NewLocalProvider(cfg LocalConfig) *LocalProvider {
	if cfg.Port == 0 {
		cfg.Port = 8121
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = 384
	}
	if cfg.Model == "" {
		cfg.Model = "bge-small-en-v1.5"
	}
	return &LocalProvider{cfg: cfg, client: &http.Client{Timeout: 30 * time.Second}}
}

func (p *LocalProvider) baseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", p.cfg.Port)
}

func (p *LocalProvider) isHealthy() bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL()+"/", nil)
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (p *LocalProvider) ensureRunning(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isHealthy() {
		return nil
	}

	binary := p.cfg.BinaryPath
	if binary == "" {
		binary = "cortex-embed"
	}
	p.cmd = exec.Command(binary)
	p.cmd.Stdout = os.Stdout
	p.cmd.Stderr = os.Stderr
	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("embedprovider: failed to start local embedding server: %w", err)
	}

	return p.waitForHealthy(ctx, 60*time.Second)
}

func (p *LocalProvider) waitForHealthy(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("embedprovider: timed out waiting for local embedding server")
		case <-ticker.C:
			if p.isHealthy() {
				return nil
			}
		}
	}
}

type localEmbedRequest struct {
	Texts []string `json:"texts"`
	Mode  string   `json:"mode"`
}

type localEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (p *LocalProvider) embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := p.ensureRunning(ctx); err != nil {
		return nil, &TransientError{Err: err}
	}

	body, err := json.Marshal(localEmbedRequest{Texts: texts, Mode: string(mode)})
	if err != nil {
		return nil, &PermanentError{Err: fmt.Errorf("encode embed request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL()+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, &PermanentError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("embed request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransientError{Err: fmt.Errorf("embedding server returned status %d", resp.StatusCode)}
	}

	var decoded localEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &PermanentError{Err: fmt.Errorf("decode embed response: %w", err)}
	}
	return decoded.Embeddings, nil
}

func (p *LocalProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return p.embed(ctx, texts, ModePassage)
}

func (p *LocalProvider) EmbedQueries(ctx context.Context, texts []string) ([][]float32, error) {
	return p.embed(ctx, texts, ModeQuery)
}

func (p *LocalProvider) ModelName() string { return p.cfg.Model }
func (p *LocalProvider) Dimension() int    { return p.cfg.Dimension }

// MaxBatchSize and MaxTokensPerInput match the teacher's
// EmbedWithProgress default batch size and BGE-small's context window.
func (p *LocalProvider) MaxBatchSize() int      { return 50 }
func (p *LocalProvider) MaxTokensPerInput() int { return 512 }

func (p *LocalProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil && p.cmd.Process != nil {
		return p.cmd.Process.Kill()
	}
	return nil
}
