// Package file persists settings as ~/.mediafilter/config.toml.
package file
