// Package config provides unified configuration loading for the leadflow
// service: defaults first, then an optional YAML file, then environment
// variable overrides with the LEADFLOW_ prefix.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    Load()
package config
