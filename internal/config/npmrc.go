package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

// ReadNpmrc parses a .npmrc file. `.npmrc`'s flat `key = value` grammar is
// a subset of INI's default (unsectioned) section, the same format
// rvben-ru reads with gopkg.in/ini.v1; scoped-registry and per-host
// auth-token lines (`@scope:registry=`, `//host/:_authToken=`) are pulled
// out of the generic key space by prefix match, same as npm's own parser.
func ReadNpmrc(path string) (Config, error) {
	var cfg Config
	cfg.ScopedRegistries = map[string]string{}
	cfg.AuthTokens = map[string]string{}

	f, err := ini.LoadSources(ini.LoadOptions{AllowBooleanKeys: true, KeyValueDelimiters: "="}, path)
	if err != nil {
		return cfg, errors.Wrap(err, "reading .npmrc")
	}

	section := f.Section("")
	for _, key := range section.Keys() {
		name, value := key.Name(), key.Value()
		switch {
		case name == "registry":
			cfg.Registry = strings.TrimRight(value, "/")
		case name == "cache":
			cfg.CacheDirectory = value
		case name == "store-dir" || name == "store-directory":
			cfg.StoreDirectory = value
		case name == "fetch-timeout":
			if ms, err := strconv.Atoi(value); err == nil {
				cfg.HTTPTimeout = time.Duration(ms) * time.Millisecond
			}
		case name == "fetch-retries":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.MaxRetries = n
			}
		case name == "maxsockets" || name == "max-concurrent-downloads":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.MaxConcurrentDownloads = n
			}
		case name == "prefer-offline" || name == "prefer-symlinked-bins":
			cfg.UseSymlinks = key.MustBool(false)
		case name == "strict-node-modules" || (name == "install-strategy" && value == "nested"):
			cfg.StrictNodeModules = true
		case strings.HasPrefix(name, "@") && strings.HasSuffix(name, ":registry"):
			scope := strings.TrimSuffix(name, ":registry")
			cfg.ScopedRegistries[scope] = strings.TrimRight(value, "/")
		case strings.HasSuffix(name, ":_authToken"):
			host := npmrcAuthHost(name)
			cfg.AuthTokens[host] = value
		}
	}
	return cfg, nil
}

// npmrcAuthHost extracts the host portion of a `//host/path:_authToken`
// key.
func npmrcAuthHost(key string) string {
	key = strings.TrimPrefix(key, "//")
	key = strings.TrimSuffix(key, ":_authToken")
	if idx := strings.Index(key, "/"); idx != -1 {
		key = key[:idx]
	}
	return key
}
