package vecquery

// Options configures a Collection.
type Options struct {
	// Logger receives structured logs. Defaults to a noop logger.
	Logger *Logger

	// MaxConcurrency bounds concurrent operator tasks. Non-positive
	// values default to GOMAXPROCS.
	MaxConcurrency int64
}

// DefaultOptions returns the default configuration.
func DefaultOptions() Options {
	return Options{
		Logger: NoopLogger(),
	}
}

// WithLogger sets the logger.
func WithLogger(logger *Logger) func(o *Options) {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithMaxConcurrency bounds concurrent operator tasks.
func WithMaxConcurrency(n int64) func(o *Options) {
	return func(o *Options) {
		o.MaxConcurrency = n
	}
}
