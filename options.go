package pdf

import "log/slog"

// ParseOptions controls how tolerant the reader is of malformed input.
// Zero value is strict mode.
type ParseOptions struct {
	Tolerant bool

	AllowErrorInOptional bool
	AllowXRefError       bool
	AllowInvalidOps      bool
	AllowMissingEndobj   bool

	Logger *slog.Logger

	// Password, if non-empty, is used when opening an encrypted document:
	// for /V 5 it is tried as the user and then the owner password; for
	// earlier versions it is checked only as the user password.
	Password string

	// MaxWorkers is stored in the options but not read by any code in this
	// package; the package has no page-decode worker pool.
	MaxWorkers int

	// ShardedCache is stored in the options but not read by any code in
	// this package; File's object cache is always guarded by a single
	// sync.RWMutex.
	ShardedCache bool
}

// Option configures a ParseOptions value.
type Option func(*ParseOptions)

// DefaultParseOptions returns strict-mode defaults with no Logger set, so
// warnings go to slog.Default() and library output composes with whatever
// the host program has configured.
func DefaultParseOptions() *ParseOptions {
	return &ParseOptions{}
}

func (o *ParseOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// NewParseOptions builds a ParseOptions from the given functional options.
func NewParseOptions(opts ...Option) *ParseOptions {
	o := DefaultParseOptions()
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// WithStrict puts the reader in strict mode: the first malformed token is a
// fatal error. This is the default; the option exists for clarity when
// building an options slice programmatically.
func WithStrict() Option {
	return func(o *ParseOptions) {
		o.Tolerant = false
		o.AllowErrorInOptional = false
		o.AllowXRefError = false
		o.AllowInvalidOps = false
		o.AllowMissingEndobj = false
	}
}

// WithTolerant enables every tolerance flag: malformed documents are
// recovered from as far as feasible rather than rejected outright.
func WithTolerant() Option {
	return func(o *ParseOptions) {
		o.Tolerant = true
		o.AllowErrorInOptional = true
		o.AllowXRefError = true
		o.AllowInvalidOps = true
		o.AllowMissingEndobj = true
	}
}

// WithLogger overrides the structured logger used for warnings emitted
// during tolerant recovery.
func WithLogger(l *slog.Logger) Option {
	return func(o *ParseOptions) { o.Logger = l }
}

// WithPassword supplies the password used to open an encrypted document
// (see ParseOptions.Password for which password checks it is tried against).
func WithPassword(pw string) Option {
	return func(o *ParseOptions) { o.Password = pw }
}

// WithMaxWorkers sets ParseOptions.MaxWorkers, which nothing in this
// package reads.
func WithMaxWorkers(n int) Option {
	return func(o *ParseOptions) { o.MaxWorkers = n }
}

// WithShardedCache sets ParseOptions.ShardedCache, which nothing in this
// package reads.
func WithShardedCache() Option {
	return func(o *ParseOptions) { o.ShardedCache = true }
}
