package constants

import (
	"io/fs"
	"time"
)

const (
	// DefaultDirPerm is the default permission used when creating directories.
	DefaultDirPerm fs.FileMode = 0o755
	// DefaultFilePerm is the default permission used when creating files.
	DefaultFilePerm fs.FileMode = 0o644
)

const (
	// DefaultInactiveDays is the logon-age threshold for the stale account check.
	DefaultInactiveDays = 90
	// DefaultScanTimeout bounds one full audit run end to end.
	DefaultScanTimeout = 10 * time.Minute
)

const (
	// DefaultAPIPort is where the HTTP API listens unless configured otherwise.
	DefaultAPIPort = 8080
	// APIShutdownGrace is how long in-flight requests get on server shutdown.
	APIShutdownGrace = 10 * time.Second
)
