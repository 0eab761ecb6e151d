// Package storage provides audit record storage backends.
//
// MemoryStorage keeps records in a map and is intended for tests and
// short-lived tooling. SQLiteStorage persists records durably with WAL
// mode enabled, suitable for single-instance deployments.
package storage
