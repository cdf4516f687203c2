// Package store provides the record storage behind core.Service: a
// PostgreSQL implementation built on pgx and an in-memory one for dry runs
// and tests.
package store

import "github.com/JonMunkholm/ispcrm/internal/core"

var (
	_ core.Store = (*Postgres)(nil)
	_ core.Store = (*Memory)(nil)
)
