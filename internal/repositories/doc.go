// Package repositories implements SQLite persistence for the sync engine.
//
// Key Implementations:
//   - [MappingRepository] : the identifier mapping store, keyed by (player, local id, item type)
//   - [ChangeLogRepository] : ordered reads and acknowledgements of the trigger-fed change log in a local library
//   - [FailureRepository] : records of change events that failed fatally
//
// Mapping entries are append-once: an insert for an existing key fails with [shared.ErrMappingConflict]
// and changing a mapping always takes a remove followed by a new insert.
// Removing a key that does not exist is not an error.
package repositories
