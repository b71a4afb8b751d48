package options

// Option mutates an opaque per-package configuration struct.
type Option func(cfg interface{})

// ApplyOptions applies option funcs to a pointer of a configuration
// struct. Options that do not recognize the struct are ignored.
func ApplyOptions(optionsStructPtr interface{}, opts ...Option) {
	for _, opt := range opts {
		opt(optionsStructPtr)
	}
}
