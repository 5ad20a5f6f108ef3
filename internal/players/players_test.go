package players

import (
	"errors"
	"testing"

	"github.com/desertthunder/gmsync/internal/players/basic"
	"github.com/desertthunder/gmsync/internal/shared"
)

func TestRegistry(t *testing.T) {
	r := Default()

	p, err := r.Lookup("basic")
	if err != nil {
		t.Fatalf("expected basic player, got %v", err)
	}
	if p.Name() != "basic" {
		t.Errorf("unexpected player name %s", p.Name())
	}
	if _, ok := p.(Initializer); !ok {
		t.Error("basic player should be able to create its schema")
	}

	if _, err := r.Lookup("winamp"); !errors.Is(err, shared.ErrUnknownPlayer) {
		t.Errorf("expected ErrUnknownPlayer, got %v", err)
	}

	if err := r.Register(basic.New()); !errors.Is(err, shared.ErrInvalidConfig) {
		t.Errorf("expected duplicate registration to fail, got %v", err)
	}

	if names := r.Names(); len(names) != 1 || names[0] != "basic" {
		t.Errorf("unexpected names %v", names)
	}
}

func TestBundlesAreValid(t *testing.T) {
	r := Default()
	for _, name := range r.Names() {
		p, _ := r.Lookup(name)
		if err := p.Bundle(":memory:").Validate(); err != nil {
			t.Errorf("%s: invalid bundle: %v", name, err)
		}
	}
}
