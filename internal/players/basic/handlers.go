package basic

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/gmsync/internal/handlers"
	"github.com/desertthunder/gmsync/internal/models"
	"github.com/desertthunder/gmsync/internal/services"
	"github.com/desertthunder/gmsync/internal/shared"
)

func loadSong(ctx context.Context, env handlers.Env) (services.Song, error) {
	var song services.Song
	err := env.Local.QueryRowContext(ctx,
		"SELECT title, artist, album, track_number, duration, path FROM songs WHERE id = ?",
		env.LocalID,
	).Scan(&song.Title, &song.Artist, &song.Album, &song.TrackNumber, &song.Duration, &song.Path)
	if errors.Is(err, sql.ErrNoRows) {
		return song, fmt.Errorf("song %s: %w", env.LocalID, shared.ErrLocalOutdated)
	}
	return song, err
}

func loadPlaylistName(ctx context.Context, env handlers.Env) (string, error) {
	var name string
	err := env.Local.QueryRowContext(ctx, "SELECT name FROM playlists WHERE id = ?", env.LocalID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("playlist %s: %w", env.LocalID, shared.ErrLocalOutdated)
	}
	return name, err
}

// AddSong uploads a new library song.
func AddSong(env handlers.Env) handlers.Handler {
	return handlers.HandlerFunc(func(ctx context.Context) (*models.HandlerResult, error) {
		song, err := loadSong(ctx, env)
		if err != nil {
			return nil, err
		}

		remoteID, err := env.Client.CreateSong(ctx, song)
		if err != nil {
			return nil, err
		}
		return models.Created(models.ItemSong, remoteID), nil
	})
}

// UpdateSong pushes changed song metadata.
func UpdateSong(env handlers.Env) handlers.Handler {
	return handlers.HandlerFunc(func(ctx context.Context) (*models.HandlerResult, error) {
		song, err := loadSong(ctx, env)
		if err != nil {
			return nil, err
		}

		remoteID, err := env.SongID(ctx)
		if err != nil {
			return nil, err
		}
		return nil, env.Client.UpdateSong(ctx, remoteID, song)
	})
}

// RemoveSong deletes the remote copy of a removed song.
func RemoveSong(env handlers.Env) handlers.Handler {
	return handlers.HandlerFunc(func(ctx context.Context) (*models.HandlerResult, error) {
		remoteID, err := env.SongID(ctx)
		if err != nil {
			return nil, err
		}

		if err := env.Client.DeleteSong(ctx, remoteID); err != nil {
			return nil, err
		}
		return models.Deleted(models.ItemSong, remoteID), nil
	})
}

// AddPlaylist creates an empty remote playlist. Entries follow through the playlist entry triggers.
func AddPlaylist(env handlers.Env) handlers.Handler {
	return handlers.HandlerFunc(func(ctx context.Context) (*models.HandlerResult, error) {
		name, err := loadPlaylistName(ctx, env)
		if err != nil {
			return nil, err
		}

		remoteID, err := env.Client.CreatePlaylist(ctx, name)
		if err != nil {
			return nil, err
		}
		return models.Created(models.ItemPlaylist, remoteID), nil
	})
}

// RenamePlaylist pushes a playlist's current name.
func RenamePlaylist(env handlers.Env) handlers.Handler {
	return handlers.HandlerFunc(func(ctx context.Context) (*models.HandlerResult, error) {
		name, err := loadPlaylistName(ctx, env)
		if err != nil {
			return nil, err
		}

		remoteID, err := env.PlaylistID(ctx)
		if err != nil {
			return nil, err
		}
		return nil, env.Client.UpdatePlaylist(ctx, remoteID, name)
	})
}

// RemovePlaylist deletes the remote copy of a removed playlist.
func RemovePlaylist(env handlers.Env) handlers.Handler {
	return handlers.HandlerFunc(func(ctx context.Context) (*models.HandlerResult, error) {
		remoteID, err := env.PlaylistID(ctx)
		if err != nil {
			return nil, err
		}

		if err := env.Client.DeletePlaylist(ctx, remoteID); err != nil {
			return nil, err
		}
		return models.Deleted(models.ItemPlaylist, remoteID), nil
	})
}

// SyncPlaylistEntries replaces the remote playlist contents with the local entries, in position order.
//
// The local id is the playlist id. Every entry's song must already be mapped.
func SyncPlaylistEntries(env handlers.Env) handlers.Handler {
	return handlers.HandlerFunc(func(ctx context.Context) (*models.HandlerResult, error) {
		if _, err := loadPlaylistName(ctx, env); err != nil {
			return nil, err
		}

		playlistID, err := env.PlaylistID(ctx)
		if err != nil {
			return nil, err
		}

		rows, err := env.Local.QueryContext(ctx,
			"SELECT song_id FROM playlist_songs WHERE playlist_id = ? ORDER BY position ASC",
			env.LocalID,
		)
		if err != nil {
			return nil, err
		}

		var localSongs []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			localSongs = append(localSongs, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()

		songIDs := make([]string, 0, len(localSongs))
		for _, localID := range localSongs {
			remoteID, err := env.Resolve(ctx, localID, models.ItemSong)
			if err != nil {
				return nil, err
			}
			songIDs = append(songIDs, remoteID)
		}

		return nil, env.Client.SetPlaylistSongs(ctx, playlistID, songIDs)
	})
}
