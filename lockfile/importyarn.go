package lockfile

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ImportYarnClassic reads yarn.lock in the classic (pre-Berry) text
// grammar: blank-line-separated blocks, each headed by one or more
// comma-separated `name@range` descriptors and followed by an indented
// `key value` / `key "value"` body, optionally with a further-indented
// `dependencies:` sub-block. No pack library parses this bespoke grammar
// (the turborepo/berry examples cover only the YAML-based Berry format),
// so this is hand-written against the literal grammar spec.md §4.6 names;
// justified in DESIGN.md.
func ImportYarnClassic(r io.Reader) (*LockFile, error) {
	lf := &LockFile{Packages: make(map[string]Entry)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var descriptors []string
	var version, resolved, integrity string
	inDeps := false
	deps := map[string]string{}

	flush := func() error {
		if len(descriptors) == 0 {
			return nil
		}
		if version == "" {
			return errors.Wrapf(ErrLock, "yarn.lock block %v has no version", descriptors)
		}
		name := yarnDescriptorName(descriptors[0])
		key := name + "@" + version
		var depsCopy map[string]string
		if len(deps) > 0 {
			depsCopy = make(map[string]string, len(deps))
			for k, v := range deps {
				depsCopy[k] = v
			}
		}
		ranges := make([]string, 0, len(descriptors))
		for _, d := range descriptors {
			ranges = append(ranges, d)
		}
		lf.Packages[key] = Entry{
			Name: name, Version: version,
			Resolved: resolved, Integrity: integrity,
			Deps: depsCopy, Ranges: ranges,
		}
		descriptors, version, resolved, integrity = nil, "", "", ""
		inDeps = false
		deps = map[string]string{}
		return nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimRight(line, " \t\r")

		if trimmed == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			continue
		}

		indent := len(line) - len(strings.TrimLeft(line, " "))

		switch {
		case indent == 0:
			// A new block header: "desc1, desc2:" possibly quoted.
			header := strings.TrimSuffix(trimmed, ":")
			for _, part := range strings.Split(header, ",") {
				part = strings.TrimSpace(part)
				part = yarnUnquote(part)
				if part != "" {
					descriptors = append(descriptors, part)
				}
			}
		case indent >= 2 && strings.HasPrefix(strings.TrimSpace(trimmed), "dependencies:"):
			inDeps = true
		case inDeps && indent >= 4:
			k, v := yarnSplitKV(strings.TrimSpace(trimmed))
			if k != "" {
				deps[k] = yarnUnquote(v)
			}
		default:
			inDeps = false
			k, v := yarnSplitKV(strings.TrimSpace(trimmed))
			switch k {
			case "version":
				version = yarnUnquote(v)
			case "resolved":
				resolved = yarnUnquote(v)
			case "integrity":
				integrity = yarnUnquote(v)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(ErrLock, err.Error())
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return lf, nil
}

// yarnDescriptorName strips the trailing "@range" (accounting for a
// leading "@scope/name@range" descriptor, where the scope's own "@" must
// not be mistaken for the range separator).
func yarnDescriptorName(descriptor string) string {
	s := descriptor
	scoped := strings.HasPrefix(s, "@")
	if scoped {
		s = s[1:]
	}
	if idx := strings.LastIndex(s, "@"); idx != -1 {
		s = s[:idx]
	}
	if scoped {
		s = "@" + s
	}
	return s
}

func yarnSplitKV(s string) (string, string) {
	idx := strings.IndexAny(s, " \t")
	if idx == -1 {
		return s, ""
	}
	return s[:idx], strings.TrimSpace(s[idx+1:])
}

func yarnUnquote(s string) string {
	if unquoted, err := strconv.Unquote(s); err == nil {
		return unquoted
	}
	return strings.Trim(s, `"`)
}
