// Package model defines the domain types and value objects for the
// recipe CLI.
//
// This package contains pure data structures with no dependencies beyond
// the standard library: Recipefile, Recipe, Container and Step describe a
// recipe file, while ExitCode and CLIError carry process exit statuses
// from the domain packages up to the cobra layer.
package model
