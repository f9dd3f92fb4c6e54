package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/pkg/errors"
)

// WriteBinShims writes one launcher per bin entry of every placement into
// the placement's nearest .bin directory: on Windows a .cmd launcher plus
// a PowerShell launcher, on Unix a single executable shell launcher with
// the executable bit set, matching the two-launcher-per-platform shape
// spec.md §4.7 "Binary shims" names.
func WriteBinShims(root string, placements []Placement) error {
	names := make([]string, 0, len(placements))
	byName := make(map[string]Placement, len(placements))
	for _, p := range placements {
		if len(p.Bin) == 0 {
			continue
		}
		if _, ok := byName[p.Identity]; !ok {
			names = append(names, p.Identity)
			byName[p.Identity] = p
		}
	}
	sort.Strings(names)

	for _, identity := range names {
		p := byName[identity]
		binDir := filepath.Join(root, filepath.FromSlash(p.BinDir()))
		if err := os.MkdirAll(binDir, 0755); err != nil {
			return errors.Wrapf(err, "creating %s", binDir)
		}

		cmdNames := make([]string, 0, len(p.Bin))
		for cmd := range p.Bin {
			cmdNames = append(cmdNames, cmd)
		}
		sort.Strings(cmdNames)

		for _, cmd := range cmdNames {
			entry := p.Bin[cmd]
			target := filepath.Join("..", p.Name, filepath.FromSlash(entry))
			if err := writeShim(binDir, cmd, target); err != nil {
				return errors.Wrapf(err, "writing bin shim %s for %s", cmd, p.Name)
			}
		}
	}
	return nil
}

func writeShim(binDir, cmd, target string) error {
	if runtime.GOOS == "windows" {
		return writeWindowsShims(binDir, cmd, target)
	}
	return writeUnixShim(binDir, cmd, target)
}

func writeUnixShim(binDir, cmd, target string) error {
	script := fmt.Sprintf("#!/bin/sh\nbasedir=$(dirname \"$0\")\nexec node \"$basedir/%s\" \"$@\"\n", filepath.ToSlash(target))
	path := filepath.Join(binDir, cmd)
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		return err
	}
	return os.Chmod(path, 0755)
}

func writeWindowsShims(binDir, cmd, target string) error {
	winTarget := filepath.FromSlash(target)

	cmdScript := fmt.Sprintf("@ECHO off\r\nGOTO start\r\n:find_dp0\r\nSET dp0=%%~dp0\r\nEXIT /b\r\n:start\r\nSETLOCAL\r\nCALL :find_dp0\r\nnode \"%%dp0%%\\%s\" %%*\r\n", winTarget)
	if err := os.WriteFile(filepath.Join(binDir, cmd+".cmd"), []byte(cmdScript), 0644); err != nil {
		return err
	}

	ps1Script := fmt.Sprintf("#!/usr/bin/env pwsh\n$basedir = Split-Path $MyInvocation.MyCommand.Definition -Parent\n& node \"$basedir/%s\" $args\nexit $LASTEXITCODE\n", filepath.ToSlash(target))
	return os.WriteFile(filepath.Join(binDir, cmd+".ps1"), []byte(ps1Script), 0644)
}
