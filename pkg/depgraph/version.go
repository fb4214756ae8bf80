package depgraph

// Version is the current version of the depgraph package.
const Version = "1.0.0"

// MinCompatibleVersion is the minimum version of the depgraph package
// that is compatible with this version.
const MinCompatibleVersion = "1.0.0"
