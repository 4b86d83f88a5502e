package reasoningbank

import "log/slog"

// Option configures a Bank.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	path          string
	logger        *slog.Logger
	retrieveLimit int
	ranker        Ranker
}

// WithPath overrides the backing file path from config (RB_DB_PATH env
// var).
func WithPath(path string) Option {
	return func(o *resolvedOptions) { o.path = path }
}

// WithLogger sets the structured logger for the Bank.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithRetrieveLimit overrides the default retrieval bound from config
// (RB_RETRIEVE_LIMIT env var).
func WithRetrieveLimit(k int) Option {
	return func(o *resolvedOptions) { o.retrieveLimit = k }
}

// WithRanker replaces the auto-selected ranking strategy (BM25 when the
// runtime's SQLite supports FTS5, term-overlap otherwise). Only the last
// call wins.
func WithRanker(r Ranker) Option {
	return func(o *resolvedOptions) { o.ranker = r }
}
