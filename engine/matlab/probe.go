// Package matlab binds the bridge to a MathWorks engine through the C
// engine API. The binding is compiled only with the "matlab" build tag and
// cgo; other builds get a stub whose Open reports engine.ErrUnavailable.
package matlab

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// LibraryName is the engine client library that must be loadable.
const LibraryName = "libeng.so"

// Available reports whether the engine client library can be found on the
// dynamic library search path. Only linux hosts are probed.
func Available() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	_, ok := findLibrary(filepath.SplitList(os.Getenv("LD_LIBRARY_PATH")), LibraryName)
	return ok
}

// findLibrary returns the first directory entry of dirs that holds name.
func findLibrary(dirs []string, name string) (string, bool) {
	for _, dir := range dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}
