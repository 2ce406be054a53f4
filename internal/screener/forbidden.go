// Package screener implements the static pre-screening pass that rejects
// obviously dangerous program text before any sandbox is ever spawned.
//
// It is not, on its own, a security boundary — blocking imports and calls by
// name is a cheap filter for the dumb majority of attacks, not a sandbox.
// The sandbox (internal/pool, internal/executor) provides the real isolation.
package screener

// forbiddenModules are top-level module names that may not be imported.
var forbiddenModules = map[string]bool{
	"os":             true,
	"sys":            true,
	"subprocess":     true,
	"socket":         true,
	"shutil":         true,
	"pathlib":        true,
	"fcntl":          true,
	"signal":         true,
	"resource":       true,
	"ctypes":         true,
	"multiprocessing": true,
	"threading":      true,
	"asyncio":        true,
	"selectors":      true,
	"urllib":         true,
	"http":           true,
	"inspect":        true,
	"importlib":      true,
}

// forbiddenCalls are bare-name or trailing-attribute callees that are rejected.
var forbiddenCalls = map[string]bool{
	"eval":      true,
	"exec":      true,
	"__import__": true,
	"compile":   true,
	"open":      true,
	"input":     true,
	"globals":   true,
	"locals":    true,
	"vars":      true,
	"getattr":   true,
	"setattr":   true,
	"delattr":   true,
	"dir":       true,
}

// forbiddenAttrs are attribute names that, however reached, indicate an
// attempt to walk the object graph toward a sandbox breakout.
var forbiddenAttrs = map[string]bool{
	"__class__":      true,
	"__dict__":       true,
	"__bases__":      true,
	"__mro__":        true,
	"__subclasses__": true,
}
