// Package schemas registers the import schemas of every entity with the
// core registry. Import this package to ensure all schemas are registered.
package schemas

// This file exists to provide a single import point.
// Each schema file uses init() to register its entity.

// Entity keys used in URLs and on the command line.
const (
	LoadShare       = "loadshare"
	OtherClientSite = "other-clients"
	Customer        = "customers"
)
