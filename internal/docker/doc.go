// Package docker runs recipe steps inside containers and cleans up the
// containers those steps leave behind.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Image pulls according to a recipe's pull policy
//   - The per-step container lifecycle: create, start, stream logs,
//     collect the exit status, remove
//   - Labels that mark step containers, so "recipe clean" can find the
//     ones a crashed run left behind
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
// Everything goes through the API interface so tests can supply a fake
// daemon.
package docker
