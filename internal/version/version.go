package version

// Version is the current version of reimage.
// This MUST be incremented for each build that includes changes.
// Use semantic versioning: MAJOR.MINOR.PATCH
const Version = "1.2.0"
