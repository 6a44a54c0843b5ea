package lrx

// Parse parses text with the default configuration, recovering from
// errors. The resulting tree is always non-nil on a nil error; broken
// input shows up as error nodes.
func (l *Language) Parse(text string) (*Tree, error) {
	return l.ParseWithConfig(NewStringInput(text), nil, NewConfig())
}

// ParseStrict parses text and fails on the first input the grammar
// cannot match.
func (l *Language) ParseStrict(text string) (*Tree, error) {
	cfg := NewConfig()
	cfg.Strict = true
	return l.ParseWithConfig(NewStringInput(text), nil, cfg)
}

// ParseWithConfig parses input with explicit gaps and configuration.
func (l *Language) ParseWithConfig(input Input, gaps []Range, cfg *Config) (*Tree, error) {
	return NewParse(l, input, gaps, cfg).Run()
}
