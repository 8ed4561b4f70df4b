package cmd

import (
	"strings"

	"github.com/aubira/flowd/pkg/persistence"
	"github.com/aubira/flowd/pkg/persistence/file"
)

// NewPersistence builds a gateway from a database URL. Only the file provider
// is implemented; any unrecognized scheme falls back to it.
func NewPersistence(databaseURL string) persistence.Gateway {
	root := strings.TrimPrefix(databaseURL, "file://")

	return file.NewGateway(root)
}
