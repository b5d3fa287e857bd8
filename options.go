package fncopy

import "github.com/charmbracelet/log"

// Option configures a Copier.
type Option func(*config)

type config struct {
	alloc        Allocator
	logger       *log.Logger
	stopAtReturn bool
	strict       bool
	arch         string
}

// WithAllocator sets where copies are placed. By default copies on 64-bit
// hosts get fresh pages within reach of the source and copies on 32-bit x86
// share an arena.
func WithAllocator(a Allocator) Option {
	return func(c *config) {
		c.alloc = a
	}
}

// WithLogger sets the logger for debug and warning messages. By default
// nothing is logged.
func WithLogger(l *log.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithScanToEnd decodes the whole scan window instead of stopping after the
// first return instruction. Use it when the window is known to hold exactly
// one function.
func WithScanToEnd() Option {
	return func(c *config) {
		c.stopAtReturn = false
	}
}

// WithStrictScan turns a scan that ends without a return instruction, or at
// bytes that don't decode, into an error. Without it such copies succeed and
// report the condition in Function.Stop.
func WithStrictScan() Option {
	return func(c *config) {
		c.strict = true
	}
}

// withArch selects an instruction set other than the host's.
func withArch(name string) Option {
	return func(c *config) {
		c.arch = name
	}
}
