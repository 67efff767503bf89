// Package constants centralizes configuration defaults shared across the CLI
// and the API server.
//
// Storing file permissions, scan thresholds and server timeouts in one place
// prevents magic numbers from scattering across cmd/ and internal/. The
// values here can be referenced from multiple packages without introducing
// import cycles.
package constants
