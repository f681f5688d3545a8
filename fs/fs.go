// Package appfs embeds the files the binaries need at runtime.
package appfs

import "embed"

//go:embed migrations all:assets
var FS embed.FS

const (
	MigrationsDir     = "migrations"
	EmailTemplatesDir = "assets/templates/email"
	DefaultSeedFile   = "assets/seed/default.yaml"
)
