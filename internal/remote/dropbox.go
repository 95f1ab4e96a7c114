package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const dropboxContentURL = "https://content.dropboxapi.com/2/files"

// Dropbox is a remote backed by a single file in a Dropbox app folder,
// using the content API's compare-and-swap upload mode. Token refresh and
// the OAuth exchange are outside this package; the client takes a
// preprovisioned access token.
type Dropbox struct {
	token string
	path  string // e.g. "/data.json"
	http  *http.Client
}

// NewDropbox creates a Dropbox remote for the given file path.
func NewDropbox(token, path string) *Dropbox {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &Dropbox{
		token: token,
		path:  path,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch implements Client.Fetch. A 409 path/not_found response means the
// file does not exist yet and is reported as absent, not as an error.
func (d *Dropbox) Fetch(ctx context.Context) (*Fetched, error) {
	arg, _ := json.Marshal(map[string]string{"path": d.path})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dropboxContentURL+"/download", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.token)
	req.Header.Set("Dropbox-API-Arg", string(arg))

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %v: %w", err, ErrUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read download response: %v: %w", err, ErrUnavailable)
	}

	if resp.StatusCode == http.StatusConflict && strings.Contains(string(body), "not_found") {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: %s: %s: %w",
			resp.Status, strings.TrimSpace(string(body)), ErrUnavailable)
	}

	var meta struct {
		Rev string `json:"rev"`
	}
	if err := json.Unmarshal([]byte(resp.Header.Get("Dropbox-API-Result")), &meta); err != nil {
		return nil, fmt.Errorf("failed to parse download metadata: %w", err)
	}

	return &Fetched{Data: body, Rev: meta.Rev}, nil
}

// Put implements Client.Put. A non-empty rev maps to the API's "update"
// write mode, which fails with a conflict when the revision is stale; an
// empty rev maps to "add", which fails when the file already exists.
func (d *Dropbox) Put(ctx context.Context, data []byte, rev string) (string, error) {
	mode := any(map[string]string{".tag": "add"})
	if rev != "" {
		mode = map[string]string{".tag": "update", "update": rev}
	}
	arg, _ := json.Marshal(map[string]any{
		"path":       d.path,
		"mode":       mode,
		"autorename": false,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dropboxContentURL+"/upload", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.token)
	req.Header.Set("Dropbox-API-Arg", string(arg))
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := d.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload failed: %v: %w", err, ErrUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read upload response: %v: %w", err, ErrUnavailable)
	}

	if resp.StatusCode == http.StatusConflict {
		return "", fmt.Errorf("upload rejected: %s: %w", strings.TrimSpace(string(body)), ErrConflict)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload failed: %s: %s: %w",
			resp.Status, strings.TrimSpace(string(body)), ErrUnavailable)
	}

	var meta struct {
		Rev string `json:"rev"`
	}
	if err := json.Unmarshal(body, &meta); err != nil {
		return "", fmt.Errorf("failed to parse upload response: %w", err)
	}
	return meta.Rev, nil
}
