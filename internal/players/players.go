// Package players keeps the media player integrations the sync engine knows about.
package players

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/desertthunder/gmsync/internal/handlers"
	"github.com/desertthunder/gmsync/internal/players/basic"
	"github.com/desertthunder/gmsync/internal/shared"
)

// Player supplies the trigger/handler bundle for one kind of media player library.
type Player interface {
	Name() string
	Bundle(localPath string) handlers.Bundle
}

// Initializer is implemented by players that can create their own library schema.
type Initializer interface {
	Init(ctx context.Context, db *sql.DB) error
}

// Registry maps player names to integrations.
type Registry struct {
	players map[string]Player
}

// NewRegistry creates a Registry holding players.
func NewRegistry(players ...Player) (*Registry, error) {
	r := &Registry{players: make(map[string]Player, len(players))}
	for _, p := range players {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Default returns a registry with the built-in players.
func Default() *Registry {
	r, err := NewRegistry(basic.New())
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds p. Names must be unique.
func (r *Registry) Register(p Player) error {
	if _, ok := r.players[p.Name()]; ok {
		return fmt.Errorf("%w: player %q registered twice", shared.ErrInvalidConfig, p.Name())
	}
	r.players[p.Name()] = p
	return nil
}

// Lookup returns the player registered under name, failing with [shared.ErrUnknownPlayer].
func (r *Registry) Lookup(name string) (Player, error) {
	p, ok := r.players[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnknownPlayer, name)
	}
	return p, nil
}

// Names lists the registered player names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.players))
	for name := range r.players {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
