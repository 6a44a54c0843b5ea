package lrx

// Config carries the knobs the parse driver honors. The zero value is
// not useful; start from NewConfig and flip what the caller needs.
type Config struct {
	// Strict fails the parse with a ParseError at the first token the
	// tables have no action for, instead of recovering.
	Strict bool

	// Recover controls whether parse errors fork recovery stacks. When
	// off, the best stopped stack is drained with forced reductions and
	// returned as-is.
	Recover bool

	// Trace routes driver decisions (applied actions, forks, recovery
	// steps) through the logger.
	Trace bool
}

// NewConfig returns the defaults the facade uses: recovering, lenient,
// quiet.
func NewConfig() *Config {
	return &Config{Recover: true}
}

// clone keeps caller-owned configs immutable once a parse starts.
func (c *Config) clone() *Config {
	out := *c
	return &out
}
