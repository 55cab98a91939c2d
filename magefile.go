//go:build mage

// Build targets for recipe itself. Publish mirrors the publish recipe that
// "recipe init" writes: build, format, lint, test, stopping at the first
// failure.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var Default = Build

var Aliases = map[string]interface{}{
	"fmt":  Fmt,
	"lint": Lint,
}

const binary = "bin/recipe"

// Build compiles bin/recipe with version information.
func Build() error {
	return sh.RunV("go", "build", "-trimpath", "-ldflags", ldflags(), "-o", binary, "./cmd/recipe")
}

// Fmt rewrites sources with gofmt.
func Fmt() error {
	return sh.RunV("gofmt", "-l", "-w", "cmd", "internal")
}

// Lint runs go vet, and golangci-lint when it is installed.
func Lint() error {
	if err := sh.RunV("go", "vet", "./..."); err != nil {
		return err
	}
	if _, err := exec.LookPath("golangci-lint"); err != nil {
		fmt.Fprintln(os.Stderr, "golangci-lint not found, skipping")
		return nil
	}
	return sh.RunV("golangci-lint", "run")
}

// Test runs the test suite with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Publish builds, formats, lints and tests, in that order.
func Publish() {
	mg.SerialDeps(Build, Fmt, Lint, Test)
}

// Clean removes build output.
func Clean() error {
	return sh.Rm("bin")
}

func ldflags() string {
	commit, err := sh.Output("git", "rev-parse", "--short", "HEAD")
	if err != nil {
		commit = "none"
	}
	version, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil {
		version = "dev"
	}
	return strings.Join([]string{
		"-s", "-w",
		"-X", "main.version=" + version,
		"-X", "main.commit=" + commit,
		"-X", "main.date=" + time.Now().UTC().Format(time.RFC3339),
	}, " ")
}
