// Package config loads, normalizes, and validates hdtexture configuration.
//
// It supplies repository defaults, reads an optional TOML file, and overlays
// environment fallbacks (HDTEX_* variables, optionally sourced from a .env
// file) before flag overrides are applied by the CLI. Paths are expanded and
// absolutized in one pass so downstream code never touches ambient state
// mid-run.
package config
