// Package config loads, normalizes, and validates padsynth daemon settings.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PADSYNTH_API_TOKEN. The key/encoder mapping edited from the web console is
// not part of this file; it lives in the YAML mapping document referenced by
// paths.mapping_file and is owned by the mapping package.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
