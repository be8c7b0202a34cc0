// Package config loads, normalizes, and validates overlaystudio configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY and MINIO_ACCESS_KEY. Directory fields left empty are
// derived from paths.data_dir so a single setting relocates all job data.
package config
