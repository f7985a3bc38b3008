package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess    = 0 // Every gate passed
	ExitGateFailed = 1 // A threshold, regression or invariant failed
	ExitError      = 2 // Configuration or scoring error
)

// GateFailureError indicates that the run completed and its artifact was
// written, but one or more gates failed.
type GateFailureError struct {
	Message string
}

func (e *GateFailureError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		// Check error type to determine exit code
		var gateErr *GateFailureError
		if errors.As(err, &gateErr) {
			if gateErr.Message != "" {
				fmt.Fprintln(os.Stderr, err)
			}
			os.Exit(ExitGateFailed)
		}

		// All other errors are configuration/scoring errors
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitError)
	}
}
