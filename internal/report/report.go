// Package report uploads crash artifacts to a remote collector endpoint.
//
// Reports are JSON documents carrying the artifact metadata (name, kind,
// size, content hash) plus, when enabled, the base64-encoded artifact bytes.
// Oversized payloads are sent as metadata only so a runaway fuzz input can
// never wedge the uploader.
//
// The [Reporter] is the main entry point. It wraps a shared retrying HTTP
// client and is safe for concurrent use.
package report

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"tools.zach/dev/crashwatch/internal/artifact"
	"tools.zach/dev/crashwatch/internal/config"
)

// httpClient is a lazily-initialized retryablehttp client shared across all
// reporters. Initialized once via httpClientOnce.
var (
	httpClient     *retryablehttp.Client
	httpClientOnce sync.Once
)

// getHTTPClient returns the shared retryable HTTP client, initializing it on
// first call with the given request timeout.
func getHTTPClient(timeout time.Duration) *retryablehttp.Client {
	httpClientOnce.Do(func() {
		httpClient = retryablehttp.NewClient()
		httpClient.RetryMax = 2
		httpClient.HTTPClient.Timeout = timeout
		httpClient.Logger = nil // suppress retryablehttp's default logging
	})
	return httpClient
}

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Report is the JSON document POSTed to the collector for each artifact.
type Report struct {
	Host    string `json:"host"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Size    int64  `json:"size"`
	SHA256  string `json:"sha256"`
	ModTime int64  `json:"modTime"`
	Signal  string `json:"signal,omitempty"`

	// Payload is the base64-encoded artifact contents. Empty when payload
	// upload is disabled or the artifact exceeds the size limit.
	Payload string `json:"payload,omitempty"`

	// Truncated is true when the artifact was too large to inline.
	Truncated bool `json:"truncated,omitempty"`
}

// Reporter sends artifact reports to a collector. The zero value is not
// usable; construct with [New].
type Reporter struct {
	url           string
	token         string
	uploadPayload bool
	maxPayload    int64
	client        *retryablehttp.Client
	host          string
}

// New builds a Reporter from the report section of the config. Returns nil
// when no collector URL is configured, which callers treat as reporting
// disabled.
func New(cfg config.ReportConfig) *Reporter {
	if cfg.URL == "" {
		return nil
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &Reporter{
		url:           cfg.URL,
		token:         cfg.Token,
		uploadPayload: cfg.UploadPayload,
		maxPayload:    int64(cfg.MaxPayloadKB) * 1024,
		client:        getHTTPClient(time.Duration(cfg.TimeoutSeconds) * time.Second),
		host:          host,
	}
}

// ///////////////////////////////////////////////
// Public API
// ///////////////////////////////////////////////

// Send uploads a single artifact to the collector. The artifact file is read
// from dir when payload upload is enabled; a read failure downgrades the
// report to metadata only rather than failing the upload.
func (r *Reporter) Send(dir string, a artifact.Artifact) error {
	rep := Report{
		Host:    r.host,
		Name:    a.Name,
		Kind:    string(a.Kind),
		Size:    a.Size,
		SHA256:  a.SHA256,
		ModTime: a.ModTime,
		Signal:  a.Signal,
	}

	if r.uploadPayload {
		if a.Size > r.maxPayload {
			rep.Truncated = true
		} else {
			data, err := os.ReadFile(filepath.Join(dir, a.Name))
			if err != nil {
				slog.Warn("reading artifact for upload, sending metadata only",
					"artifact", a.Name, "error", err)
			} else {
				rep.Payload = base64.StdEncoding.EncodeToString(data)
			}
		}
	}

	body, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshalling report for %s: %w", a.Name, err)
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", r.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("POST %s: status %d", r.url, resp.StatusCode)
	}
	return nil
}
