package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Process exit statuses.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // an entity or a check said no
	ExitCommandError = 2 // the command itself could not run
)

// Code classifies a failed command. JSON error responses carry it, and it
// decides the exit status.
type Code string

const (
	CodeUsage    Code = "E001" // bad arguments, flags or config
	CodeJournal  Code = "E002" // journal unreadable or unwritable
	CodeInternal Code = "E003"
	CodeNoReply  Code = "E101" // entity dropped the command
	CodeFailed   Code = "E102" // entity stopped with a failure
	CodeNotFound Code = "E103"
	CodeFold     Code = "E104" // a journal stream does not fold
	CodeDiverged Code = "E105" // two folds of a stream differ
	CodeScenario Code = "E106"
)

var codeExits = map[Code]int{
	CodeUsage:    ExitCommandError,
	CodeJournal:  ExitCommandError,
	CodeInternal: ExitCommandError,
	CodeNoReply:  ExitFailure,
	CodeFailed:   ExitFailure,
	CodeNotFound: ExitFailure,
	CodeFold:     ExitFailure,
	CodeDiverged: ExitFailure,
	CodeScenario: ExitFailure,
}

// Exit returns the exit status for c. Unknown codes exit with ExitFailure.
func (c Code) Exit() int {
	if status, ok := codeExits[c]; ok {
		return status
	}
	return ExitFailure
}

// CommandError is the error every command returns when it fails.
type CommandError struct {
	Code    Code
	Message string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *CommandError) Unwrap() error { return e.Err }

// failf returns a CommandError with a formatted message.
func failf(code Code, format string, args ...any) *CommandError {
	return &CommandError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// wrapf is failf with an underlying cause.
func wrapf(code Code, err error, format string, args ...any) *CommandError {
	return &CommandError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the code of the first CommandError in err's chain, or ""
// when there is none.
func CodeOf(err error) Code {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// GetExitCode maps err to a process exit status.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	return CodeOf(err).Exit()
}

// OutputFormatter writes command results as JSON or text.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; Writer when nil
	Verbose   bool
}

// CLIResponse is the envelope of every JSON result.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error half of CLIResponse.
type CLIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

// Success prints data with fmt's default text form.
func (f *OutputFormatter) Success(data any) error {
	return f.Print(data, func(w io.Writer) {
		fmt.Fprintln(w, data)
	})
}

// Print writes data as an "ok" JSON response, or calls text to render it
// for humans.
func (f *OutputFormatter) Print(data any, text func(w io.Writer)) error {
	if !f.isJSON() {
		text(f.Writer)
		return nil
	}
	return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
}

// Error writes an "error" JSON response, or one "Error [code]" line
// followed by the details when verbose.
func (f *OutputFormatter) Error(code Code, message string, details any) error {
	if f.isJSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Report writes err as a JSON error response and returns it unchanged.
// Text output is left to the caller's error printer.
func (f *OutputFormatter) Report(err error, details any) error {
	var ce *CommandError
	if f.isJSON() && errors.As(err, &ce) {
		_ = f.Error(ce.Code, ce.Message, details)
	}
	return err
}

// VerboseLog writes a diagnostic line to ErrWriter when verbose, so JSON on
// Writer stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
	}
}

// GetErrWriter returns ErrWriter, or Writer when it is unset.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter == nil {
		return f.Writer
	}
	return f.ErrWriter
}
