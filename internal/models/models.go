// package models defines the data model for the change sync engine
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ChangeLogTable is the table installed triggers append change events to.
const ChangeLogTable = "gmsync_changes"

// ItemType names a kind of remote catalog item.
type ItemType string

const (
	ItemSong     ItemType = "song"
	ItemPlaylist ItemType = "playlist"
)

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	return t == ItemSong || t == ItemPlaylist
}

// ParseItemType converts a user supplied string into an [ItemType].
func ParseItemType(s string) (ItemType, error) {
	t := ItemType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown item type %q (expected song or playlist)", s)
	}
	return t, nil
}

// Action is the mapping delta a handler reports back.
type Action string

const (
	ActionCreate Action = "create"
	ActionDelete Action = "delete"
)

// ChangeKind is the statement class a trigger fires on.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// SQL returns the keyword used in CREATE TRIGGER.
func (k ChangeKind) SQL() string {
	return strings.ToUpper(string(k))
}

// Valid reports whether k is insert, update or delete.
func (k ChangeKind) Valid() bool {
	switch k {
	case ChangeInsert, ChangeUpdate, ChangeDelete:
		return true
	}
	return false
}

// TriggerDef declares a change rule on the local database.
//
// IDText is an SQL expression evaluated inside the trigger body, usually NEW.id or OLD.id.
// It is not inspected here; a malformed expression only fails once the trigger fires.
type TriggerDef struct {
	Name   string
	Table  string
	When   ChangeKind
	IDText string
}

// Validate checks that every field is populated and When is a known kind.
func (d TriggerDef) Validate() error {
	switch {
	case d.Name == "":
		return errors.New("trigger name is required")
	case d.Table == "":
		return fmt.Errorf("trigger %q: table is required", d.Name)
	case d.IDText == "":
		return fmt.Errorf("trigger %q: id expression is required", d.Name)
	case !d.When.Valid():
		return fmt.Errorf("trigger %q: unknown change kind %q", d.Name, d.When)
	}
	return nil
}

// ChangeEvent is one row of the change log.
type ChangeEvent struct {
	Seq       int64     `json:"seq"`
	Trigger   string    `json:"trigger"`
	LocalID   string    `json:"local_id"`
	CreatedAt time.Time `json:"created_at"`
}

// HandlerResult is returned by a handler whose push created or deleted a remote item.
// Pure updates return no result.
type HandlerResult struct {
	Action   Action
	ItemType ItemType
	RemoteID string
}

// Created builds a create result for a new remote item.
func Created(t ItemType, remoteID string) *HandlerResult {
	return &HandlerResult{Action: ActionCreate, ItemType: t, RemoteID: remoteID}
}

// Deleted builds a delete result for a removed remote item.
func Deleted(t ItemType, remoteID string) *HandlerResult {
	return &HandlerResult{Action: ActionDelete, ItemType: t, RemoteID: remoteID}
}

// Validate checks the action and item type, and that creates carry a remote id.
func (r *HandlerResult) Validate() error {
	if r.Action != ActionCreate && r.Action != ActionDelete {
		return fmt.Errorf("unknown action %q", r.Action)
	}
	if !r.ItemType.Valid() {
		return fmt.Errorf("unknown item type %q", r.ItemType)
	}
	if r.Action == ActionCreate && r.RemoteID == "" {
		return errors.New("create result has no remote id")
	}
	return nil
}

// MappingEntry links a local row to its remote item for one player.
type MappingEntry struct {
	Player    string    `json:"player"`
	LocalID   string    `json:"local_id"`
	ItemType  ItemType  `json:"item_type"`
	RemoteID  string    `json:"remote_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks that the key and remote id are populated.
func (m MappingEntry) Validate() error {
	switch {
	case m.Player == "":
		return errors.New("mapping player is required")
	case m.LocalID == "":
		return errors.New("mapping local id is required")
	case !m.ItemType.Valid():
		return fmt.Errorf("unknown item type %q", m.ItemType)
	case m.RemoteID == "":
		return errors.New("mapping remote id is required")
	}
	return nil
}

// Failure is the record kept for a change event that failed fatally.
type Failure struct {
	ID        string    `json:"id"`
	Player    string    `json:"player"`
	Seq       int64     `json:"seq"`
	Trigger   string    `json:"trigger"`
	LocalID   string    `json:"local_id"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error"`
	CreatedAt time.Time `json:"created_at"`
}
