// Package basic is the reference media player integration: a minimal library of songs,
// playlists and playlist entries kept in SQLite.
package basic

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/gmsync/internal/handlers"
	"github.com/desertthunder/gmsync/internal/models"
	"github.com/desertthunder/gmsync/internal/shared"
)

// Name is the player name used in [[integrations]] config entries.
const Name = "basic"

// Schema is the library layout the triggers are written against.
const Schema = `
CREATE TABLE IF NOT EXISTS songs (
    id           INTEGER PRIMARY KEY,
    title        TEXT NOT NULL,
    artist       TEXT NOT NULL DEFAULT '',
    album        TEXT NOT NULL DEFAULT '',
    track_number INTEGER NOT NULL DEFAULT 0,
    duration     INTEGER NOT NULL DEFAULT 0,
    path         TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS playlists (
    id   INTEGER PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS playlist_songs (
    playlist_id INTEGER NOT NULL,
    song_id     INTEGER NOT NULL,
    position    INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (playlist_id, position)
);
`

// Player implements the basic integration.
type Player struct{}

func New() *Player {
	return &Player{}
}

func (p *Player) Name() string {
	return Name
}

// Init creates the library schema in db.
func (p *Player) Init(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create %s library schema: %w", Name, err)
	}
	return nil
}

// Triggers returns the change rules of the basic library, in the order they are bound.
func Triggers() []models.TriggerDef {
	return []models.TriggerDef{
		{Name: "song_added", Table: "songs", When: models.ChangeInsert, IDText: "NEW.id"},
		{Name: "song_changed", Table: "songs", When: models.ChangeUpdate, IDText: "NEW.id"},
		{Name: "song_removed", Table: "songs", When: models.ChangeDelete, IDText: "OLD.id"},
		{Name: "playlist_added", Table: "playlists", When: models.ChangeInsert, IDText: "NEW.id"},
		{Name: "playlist_changed", Table: "playlists", When: models.ChangeUpdate, IDText: "NEW.id"},
		{Name: "playlist_removed", Table: "playlists", When: models.ChangeDelete, IDText: "OLD.id"},
		{Name: "playlist_entry_added", Table: "playlist_songs", When: models.ChangeInsert, IDText: "NEW.playlist_id"},
		{Name: "playlist_entry_moved", Table: "playlist_songs", When: models.ChangeUpdate, IDText: "NEW.playlist_id"},
		{Name: "playlist_entry_removed", Table: "playlist_songs", When: models.ChangeDelete, IDText: "OLD.playlist_id"},
	}
}

// Bundle binds every trigger to its handler. localPath is the library database file.
func (p *Player) Bundle(localPath string) handlers.Bundle {
	factories := map[string]struct {
		new     handlers.Factory
		deletes models.ItemType
	}{
		"song_added":             {new: AddSong},
		"song_changed":           {new: UpdateSong},
		"song_removed":           {new: RemoveSong, deletes: models.ItemSong},
		"playlist_added":         {new: AddPlaylist},
		"playlist_changed":       {new: RenamePlaylist},
		"playlist_removed":       {new: RemovePlaylist, deletes: models.ItemPlaylist},
		"playlist_entry_added":   {new: SyncPlaylistEntries},
		"playlist_entry_moved":   {new: SyncPlaylistEntries},
		"playlist_entry_removed": {new: SyncPlaylistEntries},
	}

	defs := Triggers()
	pairs := make([]handlers.ActionPair, 0, len(defs))
	for _, def := range defs {
		f := factories[def.Name]
		pairs = append(pairs, handlers.ActionPair{Trigger: def, New: f.new, Deletes: f.deletes})
	}

	return handlers.Bundle{
		Pairs: pairs,
		Connect: func() (*sql.DB, error) {
			return shared.NewDatabase(localPath)
		},
	}
}
