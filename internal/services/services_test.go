package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/gmsync/internal/shared"
)

func TestCallError(t *testing.T) {
	tc := []struct {
		status    int
		temporary bool
	}{
		{status: 0, temporary: true},
		{status: http.StatusInternalServerError, temporary: true},
		{status: http.StatusBadGateway, temporary: true},
		{status: http.StatusUnauthorized, temporary: false},
		{status: http.StatusRequestTimeout, temporary: true},
		{status: http.StatusTooManyRequests, temporary: true},
		{status: http.StatusBadRequest, temporary: false},
		{status: http.StatusNotFound, temporary: false},
		{status: http.StatusConflict, temporary: false},
	}

	for _, tt := range tc {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			err := &CallError{Op: "create_song", Status: tt.status, Err: shared.ErrAPIRequest}
			if got := err.Temporary(); got != tt.temporary {
				t.Errorf("Temporary() = %v, want %v", got, tt.temporary)
			}
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Error("expected CallError to unwrap to ErrAPIRequest")
			}
		})
	}

	wrapped := fmt.Errorf("push: %w", &CallError{Op: "delete_song", Status: http.StatusNotFound, Err: shared.ErrAPIRequest})
	if !IsNotFound(wrapped) {
		t.Error("expected IsNotFound to see through wrapping")
	}
	if IsNotFound(errors.New("plain")) {
		t.Error("plain errors are not remote not-found errors")
	}
}

func TestProxyClient(t *testing.T) {
	ctx := context.Background()

	t.Run("NewProxyClient", func(t *testing.T) {
		if c := NewProxyClient("", nil); c.BaseURL() != defaultBaseURL {
			t.Errorf("expected default base URL, got %s", c.BaseURL())
		}
		if c := NewProxyClient("http://localhost:9000/", nil); c.BaseURL() != "http://localhost:9000" {
			t.Errorf("expected trailing slash to be trimmed, got %s", c.BaseURL())
		}
	})

	t.Run("CreateSong", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/api/songs" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected JSON content type, got %s", ct)
			}

			var song Song
			if err := json.NewDecoder(r.Body).Decode(&song); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if song.Title != "Paranoid Android" || song.Artist != "Radiohead" || song.Duration != 387 {
				t.Errorf("unexpected song body: %+v", song)
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"id": "gm-abc"})
		}))
		defer server.Close()

		client := NewProxyClient(server.URL, server.Client())
		id, err := client.CreateSong(ctx, Song{Title: "Paranoid Android", Artist: "Radiohead", Duration: 387})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if id != "gm-abc" {
			t.Errorf("expected id gm-abc, got %s", id)
		}
	})

	t.Run("Create Without ID", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		_, err := NewProxyClient(server.URL, server.Client()).CreatePlaylist(ctx, "Mix")
		var callErr *CallError
		if !errors.As(err, &callErr) {
			t.Fatalf("expected CallError, got %v", err)
		}
		if callErr.Temporary() {
			t.Error("a response without an id should not be retried")
		}
	})

	t.Run("Playlist Operations", func(t *testing.T) {
		type call struct {
			method, path string
			body         map[string]any
		}
		var calls []call

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := call{method: r.Method, path: r.URL.Path}
			if r.ContentLength > 0 {
				_ = json.NewDecoder(r.Body).Decode(&c.body)
			}
			calls = append(calls, c)
			if r.Method == http.MethodPost {
				w.Write([]byte(`{"id": "PL1"}`))
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		client := NewProxyClient(server.URL, server.Client())

		id, err := client.CreatePlaylist(ctx, "Road Trip")
		if err != nil || id != "PL1" {
			t.Fatalf("CreatePlaylist() = %q, %v", id, err)
		}
		if err := client.UpdatePlaylist(ctx, id, "Road Trip 2"); err != nil {
			t.Fatalf("UpdatePlaylist() error: %v", err)
		}
		if err := client.SetPlaylistSongs(ctx, id, []string{"s1", "s2"}); err != nil {
			t.Fatalf("SetPlaylistSongs() error: %v", err)
		}
		if err := client.DeletePlaylist(ctx, id); err != nil {
			t.Fatalf("DeletePlaylist() error: %v", err)
		}

		want := []struct{ method, path string }{
			{http.MethodPost, "/api/playlists"},
			{http.MethodPut, "/api/playlists/PL1"},
			{http.MethodPut, "/api/playlists/PL1/items"},
			{http.MethodDelete, "/api/playlists/PL1"},
		}
		if len(calls) != len(want) {
			t.Fatalf("expected %d calls, got %d", len(want), len(calls))
		}
		for i, w := range want {
			if calls[i].method != w.method || calls[i].path != w.path {
				t.Errorf("call %d: expected %s %s, got %s %s", i, w.method, w.path, calls[i].method, calls[i].path)
			}
		}

		if calls[1].body["title"] != "Road Trip 2" {
			t.Errorf("expected rename body, got %v", calls[1].body)
		}
		ids, ok := calls[2].body["video_ids"].([]any)
		if !ok || len(ids) != 2 || ids[0] != "s1" {
			t.Errorf("expected ordered video ids, got %v", calls[2].body)
		}
	})

	t.Run("Song Update And Delete", func(t *testing.T) {
		var paths []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			paths = append(paths, r.Method+" "+r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewProxyClient(server.URL, server.Client())
		if err := client.UpdateSong(ctx, "gm 1", Song{Title: "x"}); err != nil {
			t.Fatalf("UpdateSong() error: %v", err)
		}
		if err := client.DeleteSong(ctx, "gm 1"); err != nil {
			t.Fatalf("DeleteSong() error: %v", err)
		}

		if paths[0] != "PUT /api/songs/gm 1" || paths[1] != "DELETE /api/songs/gm 1" {
			t.Errorf("unexpected paths: %v", paths)
		}
	})

	t.Run("Error Responses", func(t *testing.T) {
		tc := []struct {
			name      string
			status    int
			body      string
			temporary bool
			notFound  bool
			unauthed  bool
		}{
			{name: "detail", status: http.StatusNotFound, body: `{"detail": "song not found"}`, notFound: true},
			{name: "unauthorized", status: http.StatusUnauthorized, body: `{"detail": "token expired"}`, unauthed: true},
			{name: "forbidden", status: http.StatusForbidden, unauthed: true},
			{name: "server error", status: http.StatusServiceUnavailable, body: `oops`, temporary: true},
			{name: "rate limited", status: http.StatusTooManyRequests, temporary: true},
			{name: "bad request", status: http.StatusBadRequest, body: `{"detail": "bad"}`},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.status)
					w.Write([]byte(tt.body))
				}))
				defer server.Close()

				err := NewProxyClient(server.URL, server.Client()).DeleteSong(ctx, "gm-1")

				var callErr *CallError
				if !errors.As(err, &callErr) {
					t.Fatalf("expected CallError, got %v", err)
				}
				if callErr.Status != tt.status || callErr.Op != "delete_song" {
					t.Errorf("unexpected error fields: %+v", callErr)
				}
				if callErr.Temporary() != tt.temporary {
					t.Errorf("Temporary() = %v, want %v", callErr.Temporary(), tt.temporary)
				}
				if IsNotFound(err) != tt.notFound {
					t.Errorf("IsNotFound() = %v, want %v", IsNotFound(err), tt.notFound)
				}
				if !errors.Is(err, shared.ErrAPIRequest) {
					t.Errorf("expected error to wrap ErrAPIRequest, got %v", err)
				}
				if errors.Is(err, shared.ErrNotAuthenticated) != tt.unauthed {
					t.Errorf("errors.Is(err, ErrNotAuthenticated) = %v, want %v", !tt.unauthed, tt.unauthed)
				}
			})
		}
	})

	t.Run("Failed Token Refresh Is Permanent", func(t *testing.T) {
		var calls int
		tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": "invalid_grant"}`))
		}))
		defer tokenServer.Close()

		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
		defer api.Close()

		client := NewRemoteClient(ctx, shared.RemoteConfig{
			BaseURL:      api.URL,
			ClientID:     "id",
			ClientSecret: "secret",
			TokenURL:     tokenServer.URL,
			RefreshToken: "revoked",
			Timeout:      time.Second,
		})

		err := client.DeleteSong(ctx, "gm-1")
		var callErr *CallError
		if !errors.As(err, &callErr) {
			t.Fatalf("expected CallError, got %v", err)
		}
		if callErr.Temporary() {
			t.Error("a rejected refresh token should not be retried")
		}
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if calls != 0 {
			t.Errorf("expected no request to reach the catalog, got %d", calls)
		}
	})

	t.Run("Transport Failure Is Temporary", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		_, err := NewProxyClient(url, nil).CreateSong(ctx, Song{Title: "x"})
		var callErr *CallError
		if !errors.As(err, &callErr) || !callErr.Temporary() || callErr.Status != 0 {
			t.Errorf("expected temporary transport error, got %v", err)
		}
	})

	t.Run("Rate Limit", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer server.Close()

		client := NewProxyClient(server.URL, server.Client())
		client.SetRateLimit(20, 1)

		start := time.Now()
		for range 3 {
			if err := client.DeleteSong(ctx, "gm-1"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
			t.Errorf("expected requests to be throttled, took %v", elapsed)
		}

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		if err := client.DeleteSong(cancelled, "gm-1"); err == nil {
			t.Error("expected error with cancelled context")
		}
	})
}

func TestNewRemoteClient(t *testing.T) {
	t.Run("Refresh Token Flow", func(t *testing.T) {
		tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				t.Fatalf("failed to parse token request: %v", err)
			}
			if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("refresh_token") != "refresh-me" {
				t.Errorf("unexpected token request: %v", r.Form)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token": "fresh", "token_type": "Bearer", "expires_in": 3600}`))
		}))
		defer tokenServer.Close()

		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer fresh" {
				t.Errorf("expected bearer token, got %q", got)
			}
			w.Write([]byte(`{"id": "PL9"}`))
		}))
		defer api.Close()

		client := NewRemoteClient(context.Background(), shared.RemoteConfig{
			BaseURL:      api.URL,
			ClientID:     "id",
			ClientSecret: "secret",
			TokenURL:     tokenServer.URL,
			RefreshToken: "refresh-me",
			Timeout:      5 * time.Second,
		})

		id, err := client.CreatePlaylist(context.Background(), "Mix")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if id != "PL9" {
			t.Errorf("expected PL9, got %s", id)
		}
	})

	t.Run("Without Refresh Token", func(t *testing.T) {
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "" {
				t.Errorf("expected no authorization header, got %q", got)
			}
		}))
		defer api.Close()

		client := NewRemoteClient(context.Background(), shared.RemoteConfig{BaseURL: api.URL})
		if err := client.DeleteSong(context.Background(), "gm-1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})
}
