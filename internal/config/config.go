// Package config holds the core's one immutable configuration record,
// following the same shape as context.go's Ctx: built once, by value or
// pointer-to-immutable, and threaded down through every component rather
// than read from a global.
package config

import "time"

// Config is the opaque configuration record every component reads. It is
// never mutated after construction; callers that need a variant build a
// new Config with the changed field set, mirroring dep's own
// NewContext-builds-once-then-passed-by-reference pattern.
type Config struct {
	StoreDirectory string
	CacheDirectory string

	Registry         string
	ScopedRegistries map[string]string
	AuthTokens       map[string]string

	HTTPTimeout time.Duration
	MaxRetries  int

	MaxConcurrentDownloads int

	UseHardLinks      bool
	UseSymlinks       bool
	StrictNodeModules bool
	VerifyIntegrity   bool
}

// Default returns the configuration the core uses absent any `.npmrc` or
// CLI override: a `~/.jio/store` content store, the public npm registry,
// hard links preferred, hoisted (non-strict) layout, integrity always
// verified.
func Default(homeDir string) Config {
	return Config{
		StoreDirectory:         homeDir + "/.jio/store",
		CacheDirectory:         homeDir + "/.jio/cache",
		Registry:               "https://registry.npmjs.org",
		ScopedRegistries:       map[string]string{},
		AuthTokens:             map[string]string{},
		HTTPTimeout:            30 * time.Second,
		MaxRetries:             3,
		MaxConcurrentDownloads: 10,
		UseHardLinks:           true,
		UseSymlinks:            false,
		StrictNodeModules:      false,
		VerifyIntegrity:        true,
	}
}

// Merge layers override on top of c, keeping c's value for every zero-value
// field in override. Used to apply a parsed .npmrc on top of Default().
func (c Config) Merge(override Config) Config {
	out := c
	if override.StoreDirectory != "" {
		out.StoreDirectory = override.StoreDirectory
	}
	if override.CacheDirectory != "" {
		out.CacheDirectory = override.CacheDirectory
	}
	if override.Registry != "" {
		out.Registry = override.Registry
	}
	for scope, url := range override.ScopedRegistries {
		if out.ScopedRegistries == nil {
			out.ScopedRegistries = map[string]string{}
		}
		out.ScopedRegistries[scope] = url
	}
	for host, token := range override.AuthTokens {
		if out.AuthTokens == nil {
			out.AuthTokens = map[string]string{}
		}
		out.AuthTokens[host] = token
	}
	if override.HTTPTimeout != 0 {
		out.HTTPTimeout = override.HTTPTimeout
	}
	if override.MaxRetries != 0 {
		out.MaxRetries = override.MaxRetries
	}
	if override.MaxConcurrentDownloads != 0 {
		out.MaxConcurrentDownloads = override.MaxConcurrentDownloads
	}
	if override.UseHardLinks {
		out.UseHardLinks = true
	}
	if override.UseSymlinks {
		out.UseSymlinks = true
	}
	if override.StrictNodeModules {
		out.StrictNodeModules = true
	}
	if override.VerifyIntegrity {
		out.VerifyIntegrity = true
	}
	return out
}
