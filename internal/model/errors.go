package model

import "fmt"

// ExitCode defines the process exit codes of the recipe CLI. Scripts and
// CI systems can use them to tell "the recipe failed" apart from "the
// runner could not start".
//
// A failing step does not use these constants: the CLI exits with the
// step's own exit status, the way a shell script would.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitRecipefileNotFound indicates no recipe file was found.
	ExitRecipefileNotFound ExitCode = 2

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	ExitDockerNotRunning ExitCode = 3

	// ExitInvalidRecipefile indicates the recipe file failed to parse or validate.
	ExitInvalidRecipefile ExitCode = 4

	// ExitUnknownRecipe indicates a requested recipe does not exist.
	ExitUnknownRecipe ExitCode = 5

	// ExitGitError indicates a git invocation failed.
	ExitGitError ExitCode = 6

	// ExitUserCancelled indicates the user declined a confirmation prompt.
	ExitUserCancelled ExitCode = 7

	// ExitInterrupted is used when the run was cancelled by SIGINT/SIGTERM,
	// following the shell convention of 128+SIGINT.
	ExitInterrupted ExitCode = 130
)

// CLIError is an error that carries an exit code, so the CLI layer can
// translate domain failures into process exit statuses.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error returns the message, including the underlying error when present.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
