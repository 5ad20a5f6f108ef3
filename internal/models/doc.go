// Package models defines the value types shared by the sync engine.
//
// Change detection:
//   - [TriggerDef] : a declarative rule installed as an SQLite trigger
//   - [ChangeEvent] : one row appended to [ChangeLogTable] when a trigger fires
//
// Mapping:
//   - [HandlerResult] : the create/delete delta a handler reports after a push
//   - [MappingEntry] : a persisted (player, local id, item type) → remote id row
//   - [Failure] : a change event that could not be synced
package models
