// Package depgraph parses dependency declarations and maintains the
// dependency graph between registered modules.
//
// A declaration is a module name with optional sigils:
//
//	"db"      required: db must be registered, this module depends on it
//	"?cache"  optional: depend on cache if it is registered
//	"?!auth"  recommended: like optional, but a missing target is reported as a warning
//	"!!old"   incompatible: fails if old is registered
//	"<ui"     reversed: ui depends on this module (combines with any priority, e.g. "<?ui")
//
// The graph is rebuilt from scratch by Reload and is read-only in between.
package depgraph
