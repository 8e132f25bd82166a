// Package model implements the supported-model registry (spec §4.I): the
// configured set of valid tape media models, loaded once from
// configuration and checked case-insensitively thereafter.
//
// Per the design notes in spec §9, this is represented as a scoped value
// (*Registry) built once at Handle open rather than mutable package-level
// state; Default/Init exist only to offer the literal "process-wide,
// initialized-at-most-once" behavior spec §3 describes for callers that
// want a single shared instance.
package model

import (
	"strings"
	"sync"

	"github.com/cea-hpc/phobos-sub000/dsserr"
)

// Registry is an immutable, case-insensitive set of supported tape models.
type Registry struct {
	models map[string]struct{}
}

// NewRegistry parses a comma-separated configuration value (spec §6.1
// tape_model.supported_list) into a Registry.
func NewRegistry(commaSeparated string) *Registry {
	r := &Registry{models: map[string]struct{}{}}
	for _, m := range strings.Split(commaSeparated, ",") {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		r.models[strings.ToLower(m)] = struct{}{}
	}
	return r
}

// Check reports whether model is in the supported set, case-insensitively.
func (r *Registry) Check(model string) bool {
	if r == nil {
		return false
	}
	_, ok := r.models[strings.ToLower(model)]
	return ok
}

// Models returns the supported models in an unspecified order; callers
// that need a stable order (e.g. for display) sort the result themselves.
func (r *Registry) Models() []string {
	out := make([]string, 0, len(r.models))
	for m := range r.models {
		out = append(out, m)
	}
	return out
}

var (
	defaultReg  *Registry
	initialized bool
	initMu      sync.Mutex
)

// Init parses commaSeparated into the process-wide default Registry. A
// second call returns dsserr.AlreadyInitialized and is a no-op, per spec
// §3 ("a subsequent initialization ... is a no-op").
func Init(commaSeparated string) error {
	initMu.Lock()
	defer initMu.Unlock()
	if initialized {
		return dsserr.Kindf(dsserr.AlreadyInitialized, "supported-model registry already initialized")
	}
	defaultReg = NewRegistry(commaSeparated)
	initialized = true
	return nil
}

// Default returns the process-wide Registry, or an empty Registry if Init
// has not been called yet.
func Default() *Registry {
	initMu.Lock()
	defer initMu.Unlock()
	if defaultReg == nil {
		defaultReg = NewRegistry("")
	}
	return defaultReg
}

// resetForTesting clears process-wide state; only called from tests in
// this package.
func resetForTesting() {
	initMu.Lock()
	defer initMu.Unlock()
	initialized = false
	defaultReg = nil
}
