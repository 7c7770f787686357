// Package config loads and validates the daemon configuration: the target
// set, recovery action sequences and global defaults. Configuration is
// immutable after load; an invalid target set refuses to start the daemon.
// A missing config file is materialized with defaults on first run.
package config
