//go:build mage

// Package main provides build targets for the docgraph project using Mage.
//
// Usage:
//
//	mage build         Compile the docgraph binary to bin/
//	mage test:all      Run all tests
//	mage test:race     Run all tests with the race detector
//	mage test:cover    Write coverage to bin/coverage.out
//	mage test:smoke    Build, then drive the binary against a scratch directory
//	mage lint          Run golangci-lint
//	mage vet           Run go vet
//	mage clean         Remove build artifacts
//	mage install       Install docgraph to GOPATH/bin
//	mage stats         Print Go line counts per package
package main

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "docgraph"
	binaryDir  = "bin"
	cmdDir     = "./cmd/docgraph"
)

// Build compiles the docgraph binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", binaryPath(), cmdDir)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	return sh.Copy(filepath.Join(gopath, "bin", binaryName), binaryPath())
}

// Stats prints production and test line counts per package directory.
func Stats() error {
	type counts struct{ prod, test int }
	perDir := map[string]*counts{}

	err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			switch path {
			case "vendor", ".git", binaryDir, "magefiles", "_examples":
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		n, err := countLines(path)
		if err != nil {
			return nil
		}
		dir := filepath.Dir(path)
		c := perDir[dir]
		if c == nil {
			c = &counts{}
			perDir[dir] = c
		}
		if strings.HasSuffix(path, "_test.go") {
			c.test += n
		} else {
			c.prod += n
		}
		return nil
	})
	if err != nil {
		return err
	}

	dirs := make([]string, 0, len(perDir))
	for dir := range perDir {
		dirs = append(dirs, dir)
	}
	slices.Sort(dirs)

	var total counts
	fmt.Printf("%-28s %8s %8s\n", "package", "prod", "test")
	for _, dir := range dirs {
		c := perDir[dir]
		fmt.Printf("%-28s %8d %8d\n", dir, c.prod, c.test)
		total.prod += c.prod
		total.test += c.test
	}
	fmt.Printf("%-28s %8d %8d\n", "total", total.prod, total.test)
	return nil
}

func binaryPath() string {
	return filepath.Join(binaryDir, binaryName)
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	return count, scanner.Err()
}
