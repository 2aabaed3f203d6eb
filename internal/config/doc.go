// Package config loads, normalizes, and validates HikFetch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a .env file when present, and honours
// HIKFETCH_* environment fallbacks for the device connection and archive
// location. The Config type centralizes every knob the daemon and CLI need so
// device credentials, archive paths, and API settings are discovered in one
// pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
