// Package config defines the settings used by the claude-sync commands and
// provides helpers to load, validate and save them in YAML format.
//
// Every field has a working default, so the sync runs with no settings file
// at all. The GitHub token is taken from the environment only.
package config
