// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/gmsync/internal/services"
	"github.com/desertthunder/gmsync/internal/shared"
)

// Call is one recorded [MockClient] invocation.
type Call struct {
	Op       string
	RemoteID string
	Song     services.Song
	Name     string
	SongIDs  []string
}

// MockClient is an in-memory test double for [services.Client].
//
// Remote ids are handed out from [MockClient.QueueIDs] first, then as gm-1, gm-2, ...
// Updating or deleting an unknown remote id fails with a 404 [services.CallError].
type MockClient struct {
	mu        sync.Mutex
	calls     []Call
	songs     map[string]services.Song
	playlists map[string]string
	entries   map[string][]string
	failures  map[string][]error
	ids       []string
	seq       int
}

func NewMockClient() *MockClient {
	return &MockClient{
		songs:     make(map[string]services.Song),
		playlists: make(map[string]string),
		entries:   make(map[string][]string),
		failures:  make(map[string][]error),
	}
}

// QueueIDs sets the remote ids returned by the next create calls.
func (m *MockClient) QueueIDs(ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = append(m.ids, ids...)
}

// FailNext makes the next len(errs) calls of op fail with errs, in order.
func (m *MockClient) FailNext(op string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = append(m.failures[op], errs...)
}

// Calls returns the recorded calls, optionally filtered by op.
func (m *MockClient) Calls(op string) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Call
	for _, c := range m.calls {
		if op == "" || c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Song returns the remote song stored under id.
func (m *MockClient) Song(id string) (services.Song, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.songs[id]
	return s, ok
}

// Playlist returns the name and entries of the remote playlist stored under id.
func (m *MockClient) Playlist(id string) (string, []string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.playlists[id]
	return name, m.entries[id], ok
}

// SongCount returns the number of remote songs.
func (m *MockClient) SongCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.songs)
}

func (m *MockClient) begin(c Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, c)
	if queued := m.failures[c.Op]; len(queued) > 0 {
		m.failures[c.Op] = queued[1:]
		return queued[0]
	}
	return nil
}

func (m *MockClient) nextID() string {
	if len(m.ids) > 0 {
		id := m.ids[0]
		m.ids = m.ids[1:]
		return id
	}
	m.seq++
	return fmt.Sprintf("gm-%d", m.seq)
}

func notFound(op string) error {
	return &services.CallError{Op: op, Status: http.StatusNotFound, Err: shared.ErrAPIRequest}
}

func (m *MockClient) CreateSong(ctx context.Context, song services.Song) (string, error) {
	if err := m.begin(Call{Op: "create_song", Song: song}); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID()
	m.songs[id] = song
	return id, nil
}

func (m *MockClient) UpdateSong(ctx context.Context, remoteID string, song services.Song) error {
	if err := m.begin(Call{Op: "update_song", RemoteID: remoteID, Song: song}); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.songs[remoteID]; !ok {
		return notFound("update_song")
	}
	m.songs[remoteID] = song
	return nil
}

func (m *MockClient) DeleteSong(ctx context.Context, remoteID string) error {
	if err := m.begin(Call{Op: "delete_song", RemoteID: remoteID}); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.songs[remoteID]; !ok {
		return notFound("delete_song")
	}
	delete(m.songs, remoteID)
	return nil
}

func (m *MockClient) CreatePlaylist(ctx context.Context, name string) (string, error) {
	if err := m.begin(Call{Op: "create_playlist", Name: name}); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID()
	m.playlists[id] = name
	return id, nil
}

func (m *MockClient) UpdatePlaylist(ctx context.Context, remoteID, name string) error {
	if err := m.begin(Call{Op: "update_playlist", RemoteID: remoteID, Name: name}); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.playlists[remoteID]; !ok {
		return notFound("update_playlist")
	}
	m.playlists[remoteID] = name
	return nil
}

func (m *MockClient) DeletePlaylist(ctx context.Context, remoteID string) error {
	if err := m.begin(Call{Op: "delete_playlist", RemoteID: remoteID}); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.playlists[remoteID]; !ok {
		return notFound("delete_playlist")
	}
	delete(m.playlists, remoteID)
	delete(m.entries, remoteID)
	return nil
}

func (m *MockClient) SetPlaylistSongs(ctx context.Context, remoteID string, songIDs []string) error {
	ids := append([]string(nil), songIDs...)
	if err := m.begin(Call{Op: "set_playlist_songs", RemoteID: remoteID, SongIDs: ids}); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.playlists[remoteID]; !ok {
		return notFound("set_playlist_songs")
	}
	m.entries[remoteID] = ids
	return nil
}

// Transient returns a remote error that is worth retrying.
func Transient(op string) error {
	return &services.CallError{Op: op, Status: http.StatusServiceUnavailable, Err: shared.ErrAPIRequest}
}

// Permanent returns a remote error that is not worth retrying.
func Permanent(op string) error {
	return &services.CallError{Op: op, Status: http.StatusBadRequest, Err: shared.ErrAPIRequest}
}

// MustMappingDB opens an in-memory mapping database with migrations applied.
func MustMappingDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create mapping database: %v", err)
	}
	if err := shared.RunMigrations(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
