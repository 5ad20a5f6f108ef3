// package services defines the remote catalog [Client] contract and its HTTP implementation
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Client performs create, update and delete operations on remote catalog items.
//
// Every failure is returned as a [*CallError].
type Client interface {
	// CreateSong uploads song metadata and returns the new remote song id.
	CreateSong(ctx context.Context, song Song) (string, error)

	// UpdateSong replaces the metadata of an existing remote song.
	UpdateSong(ctx context.Context, remoteID string, song Song) error

	// DeleteSong removes a remote song.
	DeleteSong(ctx context.Context, remoteID string) error

	// CreatePlaylist creates an empty playlist and returns its remote id.
	CreatePlaylist(ctx context.Context, name string) (string, error)

	// UpdatePlaylist renames a remote playlist.
	UpdatePlaylist(ctx context.Context, remoteID, name string) error

	// DeletePlaylist removes a remote playlist.
	DeletePlaylist(ctx context.Context, remoteID string) error

	// SetPlaylistSongs replaces the contents of a remote playlist with songIDs, in order.
	SetPlaylistSongs(ctx context.Context, remoteID string, songIDs []string) error
}

// Song is the metadata pushed for one library song.
type Song struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album,omitempty"`
	TrackNumber int    `json:"track_number,omitempty"`
	Duration    int    `json:"duration_seconds,omitempty"` // Duration in seconds
	Path        string `json:"path,omitempty"`             // Local file path, used by the proxy for uploads
}

// CallError is a failed remote call.
//
// Status is the HTTP status code, or zero when no response was received.
type CallError struct {
	Op     string
	Status int
	Err    error
}

func (e *CallError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("remote %s failed (status %d): %v", e.Op, e.Status, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the call may succeed.
//
// Transport failures, server errors, timeouts and rate limiting are temporary. Any other client
// error is permanent, rejected credentials included.
func (e *CallError) Temporary() bool {
	switch {
	case e.Status == 0, e.Status >= 500:
		return true
	case e.Status == http.StatusRequestTimeout, e.Status == http.StatusTooManyRequests:
		return true
	}
	return false
}

// IsNotFound reports whether err is a remote call rejected because the item does not exist.
func IsNotFound(err error) bool {
	var callErr *CallError
	return errors.As(err, &callErr) && callErr.Status == http.StatusNotFound
}
