// Package crashwatch provides embedded assets for the crashwatch daemon.
//
// The root package exists solely to embed [config.default.toml] via
// [DefaultConfigTOML]. The daemon copies this file into the data directory
// on first run to seed a documented starting configuration.
package crashwatch

import _ "embed"

// DefaultConfigTOML holds the raw bytes of config.default.toml, embedded at
// build time. Regenerate it with go generate ./internal/config after
// changing defaults or field docs.
//
//go:embed config.default.toml
var DefaultConfigTOML []byte
