package singleton

// Process-wide registries. The eager one is built while the package is
// initialized, before any caller can reach it.
var (
	defaultRegistry      = New()
	defaultEagerRegistry = MustNewEager()
)

// Default returns the process-wide lazy registry.
func Default() *Registry {
	return defaultRegistry
}

// DefaultEager returns the process-wide eager registry.
func DefaultEager() *Registry {
	return defaultEagerRegistry
}
