// Package config provides the YAML-backed loader for types.Config, the way
// the teacher's configuration files are loaded elsewhere in the pack:
// defaults first, then an optional file overlaid on top.
package config
