package media

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/nelrik/waypost/internal/core"
	"go.uber.org/zap"
)

// Ingestor turns a remote attachment reference into a deduplicated,
// locally-addressable blob.
type Ingestor struct {
	store  *Service
	client *http.Client
	logger *zap.Logger
}

// NewIngestor creates an ingestor delivering into store. client may be nil,
// in which case http.DefaultClient is used.
func NewIngestor(store *Service, client *http.Client, logger *zap.Logger) *Ingestor {
	if client == nil {
		client = http.DefaultClient
	}
	return &Ingestor{store: store, client: client, logger: logger}
}

// indirection is the metadata document some media providers answer with in
// place of the binary itself, naming the real download location.
type indirection struct {
	URL string `json:"url"`
}

// Ingest fetches sourceURL, follows at most one metadata-indirection hop,
// and hands the final bytes to the dedup store. Fetch and redirection
// failures are recoverable; the caller may retry the whole ingest.
func (ig *Ingestor) Ingest(ctx context.Context, sourceURL, declaredType, originalName string, owner OwnerContext) (*Reference, error) {
	data, err := ig.fetch(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	if realURL, ok := indirectionTarget(data); ok {
		ig.logger.Debug("following media indirection",
			zap.String("source", sourceURL),
			zap.String("target", realURL))
		data, err = ig.fetch(ctx, realURL)
		if err != nil {
			return nil, err
		}
		// One hop only. A provider nesting two levels of indirection is a
		// failure, not something to chase.
		if _, again := indirectionTarget(data); again {
			return nil, core.Fetchf("nested indirection from %s", sourceURL)
		}
	}

	if len(data) == 0 {
		return nil, core.Fetchf("empty payload from %s", sourceURL)
	}
	// Expired or revoked attachments come back as a JSON error body under a
	// 200. Storing one would poison the dedup store with a non-media blob.
	if isMetadataDocument(data) {
		return nil, core.Fetchf("metadata document instead of media from %s", sourceURL)
	}

	return ig.store.Store(ctx, data, declaredType, originalName, owner)
}

func (ig *Ingestor) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, core.Fetchf("build request for %s: %v", url, err)
	}
	resp, err := ig.client.Do(req)
	if err != nil {
		return nil, core.Fetchf("get %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, core.Fetchf("get %s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.Fetchf("read %s: %v", url, err)
	}
	return data, nil
}

// indirectionTarget reports whether data is a provider metadata document
// rather than binary content, and if so where the real binary lives. The
// leading byte is sniffed first so binary payloads never pay for a JSON
// parse.
func indirectionTarget(data []byte) (string, bool) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", false
	}
	var ind indirection
	if err := json.Unmarshal(trimmed, &ind); err != nil || ind.URL == "" {
		return "", false
	}
	return ind.URL, true
}

// isMetadataDocument reports whether data is a JSON object rather than
// binary media.
func isMetadataDocument(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed)
}
