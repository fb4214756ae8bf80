// Package descriptor loads module descriptions from files.
//
// A descriptor file holds one module description in TOML (*.toml) or YAML
// (*.yaml, *.yml):
//
//	name = "billing"
//	version = "1.4.0"
//	website = "https://example.com/billing"
//	dependencies = ["db", "?cache", "<ui"]
//
// Dir reads every descriptor in a directory. Watcher observes the directory
// and reports the new descriptor set after changes settle.
package descriptor
