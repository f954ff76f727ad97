//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Test groups test targets.
type Test mg.Namespace

// All runs all tests.
func (Test) All() error {
	return sh.RunV(binGo, "test", "./...")
}

// Race runs all tests with the race detector. The dictionary store's batch
// timer and the weak registry are the concurrent paths it covers.
func (Test) Race() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Cover writes a coverage profile to bin/coverage.out and prints the summary.
func (Test) Cover() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	profile := filepath.Join(binaryDir, "coverage.out")
	if err := sh.RunV(binGo, "test", "-coverprofile", profile, "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func", profile)
}

// Smoke builds the binary and runs an edit session against a scratch
// directory for each backend.
func (Test) Smoke() error {
	mg.Deps(Build)
	bin, err := filepath.Abs(binaryPath())
	if err != nil {
		return err
	}

	for _, backend := range []string{"sqlite", "json", "memory"} {
		dir, err := os.MkdirTemp("", "docgraph-smoke-")
		if err != nil {
			return err
		}
		run := func(args ...string) (string, error) {
			args = append([]string{"--config-dir", filepath.Join(dir, "config"), "--data-dir", filepath.Join(dir, "data")}, args...)
			return sh.Output(bin, args...)
		}

		steps := [][]string{
			{"init", "--backend", backend},
			{"set-title", "smoke"},
			{"show"},
		}
		for _, step := range steps {
			if _, err := run(step...); err != nil {
				os.RemoveAll(dir)
				return fmt.Errorf("%s: docgraph %s: %w", backend, strings.Join(step, " "), err)
			}
		}
		display, err := run("add-display", "--title", "smoke")
		if err == nil {
			_, err = run("add-graphic", display, "--label", "roi")
		}
		if err == nil {
			_, err = run("export-jsonl")
		}
		os.RemoveAll(dir)
		if err != nil {
			return fmt.Errorf("%s: %w", backend, err)
		}
		fmt.Printf("smoke %s: ok\n", backend)
	}
	return nil
}
