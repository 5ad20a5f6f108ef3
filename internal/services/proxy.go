// Catalog proxy [Client] implementation
//
// Communicates with an HTTP proxy in front of the music catalog. The proxy owns request signing
// for the catalog itself; this client only needs a bearer token, which [NewRemoteClient] obtains
// with the OAuth2 refresh-token flow.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/desertthunder/gmsync/internal/shared"
)

const defaultBaseURL string = "http://localhost:8080"

// ProxyClient implements [Client] against the catalog proxy.
type ProxyClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewProxyClient creates a client for the proxy at baseURL. A nil httpClient uses [http.DefaultClient].
func NewProxyClient(baseURL string, httpClient *http.Client) *ProxyClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &ProxyClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// SetRateLimit throttles outgoing requests to rps per second with the given burst. rps <= 0 disables throttling.
func (p *ProxyClient) SetRateLimit(rps float64, burst int) {
	if rps <= 0 {
		p.limiter = nil
		return
	}
	if burst < 1 {
		burst = 1
	}
	p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// BaseURL returns the proxy base URL.
func (p *ProxyClient) BaseURL() string {
	return p.baseURL
}

func (p *ProxyClient) doRequest(ctx context.Context, op, method, endpoint string, body, result any) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return &CallError{Op: op, Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	var reader io.Reader
	if body != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return &CallError{Op: op, Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		reader = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+endpoint, reader)
	if err != nil {
		return &CallError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		var tokenErr *oauth2.RetrieveError
		if errors.As(err, &tokenErr) {
			return &CallError{Op: op, Status: http.StatusUnauthorized, Err: fmt.Errorf("%w: token refresh failed: %w", shared.ErrNotAuthenticated, err)}
		}
		return &CallError{Op: op, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := shared.ErrAPIRequest
		var errResp struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Detail != "" {
			reason = fmt.Errorf("%w: %s", shared.ErrAPIRequest, errResp.Detail)
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			reason = fmt.Errorf("%w: %w", shared.ErrNotAuthenticated, reason)
		}
		return &CallError{Op: op, Status: resp.StatusCode, Err: reason}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return &CallError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
		}
	}

	return nil
}

type createdResponse struct {
	ID string `json:"id"`
}

func (p *ProxyClient) create(ctx context.Context, op, endpoint string, body any) (string, error) {
	var created createdResponse
	if err := p.doRequest(ctx, op, http.MethodPost, endpoint, body, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", &CallError{Op: op, Status: http.StatusOK, Err: fmt.Errorf("%w: response has no id", shared.ErrAPIRequest)}
	}
	return created.ID, nil
}

// CreateSong calls POST /api/songs on the proxy.
func (p *ProxyClient) CreateSong(ctx context.Context, song Song) (string, error) {
	return p.create(ctx, "create_song", "/api/songs", song)
}

// UpdateSong calls PUT /api/songs/{id} on the proxy.
func (p *ProxyClient) UpdateSong(ctx context.Context, remoteID string, song Song) error {
	return p.doRequest(ctx, "update_song", http.MethodPut, "/api/songs/"+url.PathEscape(remoteID), song, nil)
}

// DeleteSong calls DELETE /api/songs/{id} on the proxy.
func (p *ProxyClient) DeleteSong(ctx context.Context, remoteID string) error {
	return p.doRequest(ctx, "delete_song", http.MethodDelete, "/api/songs/"+url.PathEscape(remoteID), nil, nil)
}

// CreatePlaylist calls POST /api/playlists on the proxy.
func (p *ProxyClient) CreatePlaylist(ctx context.Context, name string) (string, error) {
	return p.create(ctx, "create_playlist", "/api/playlists", map[string]string{"title": name})
}

// UpdatePlaylist calls PUT /api/playlists/{id} on the proxy.
func (p *ProxyClient) UpdatePlaylist(ctx context.Context, remoteID, name string) error {
	endpoint := "/api/playlists/" + url.PathEscape(remoteID)
	return p.doRequest(ctx, "update_playlist", http.MethodPut, endpoint, map[string]string{"title": name}, nil)
}

// DeletePlaylist calls DELETE /api/playlists/{id} on the proxy.
func (p *ProxyClient) DeletePlaylist(ctx context.Context, remoteID string) error {
	return p.doRequest(ctx, "delete_playlist", http.MethodDelete, "/api/playlists/"+url.PathEscape(remoteID), nil, nil)
}

// SetPlaylistSongs calls PUT /api/playlists/{id}/items on the proxy.
func (p *ProxyClient) SetPlaylistSongs(ctx context.Context, remoteID string, songIDs []string) error {
	if songIDs == nil {
		songIDs = []string{}
	}
	endpoint := fmt.Sprintf("/api/playlists/%s/items", url.PathEscape(remoteID))
	body := map[string]any{"playlist_id": remoteID, "video_ids": songIDs}
	return p.doRequest(ctx, "set_playlist_songs", http.MethodPut, endpoint, body, nil)
}
