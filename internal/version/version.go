// Package version carries build metadata injected with -ldflags.
package version

import "runtime"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the version banner, noting whether sherpa-onnx is compiled in.
func String(sherpa bool) string {
	engines := "remote"
	if sherpa {
		engines = "sherpa-onnx+remote"
	}
	return "parley " + Version + " (commit=" + Commit + ", date=" + Date + ", engines=" + engines + ", go=" + runtime.Version() + ")"
}
