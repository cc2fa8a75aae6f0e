package errors

// Reserved error-code ranges, one block per package, so codes never
// collide across packages.
const (
	MinPkgTransport    = 100
	MinPkgSession      = 200
	MinPkgWire         = 300
	MinPkgQueue        = 400
	MinPkgWorkerPool   = 500
	MinPkgWorker       = 600
	MinPkgKVCache      = 700
	MinPkgModelReg     = 800
	MinPkgModelPool    = 900
	MinPkgSmartLoader  = 1000
	MinPkgCrypt        = 1100
	MinPkgSanitize     = 1200
	MinPkgIPC          = 1300
	MinPkgRuntime      = 1400
	MinPkgConfig       = 1500
	MinPkgK8s          = 1600
	MinPkgCLI          = 1700
	MinPkgAudit        = 1800
	MinPkgMetrics      = 1900

	MinAvailable = 2000
)
