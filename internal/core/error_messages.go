package core

// error_messages.go maps technical errors to coded messages for the CLI
// and the HTTP API. Users quote the code; support looks it up here.
//
// # Configuration Errors (CFG001-CFG099)
//
//	CFG001 - Rules document cannot be parsed
//	         Action: Fix the JSON/YAML syntax or remove unknown fields
//	CFG002 - Rules reference a column or rule that cannot exist
//	         Action: Check rename_columns, source_columns and rule names
//	CFG003 - Rules file missing or unreadable
//	         Action: Check RULES_PATH
//	CFG004 - No rules configured for the requested file
//
// # Rule Errors (RULE001-RULE099)
//
//	RULE001 - Rule registration failed at startup
//	          Action: Contact the maintainers; this is a build problem
//	RULE002 - Unknown rule
//	          Action: Use a name listed by `csvclean rules`
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Source file not found or unreadable
//	FILE003 - Unsupported encoding
//	FILE004 - No file provided
//	FILE005 - Source could not be read
//
// # Sink Errors (SINK001-SINK099)
//
//	SINK001 - Output could not be written
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Run is incomplete and was not written
//	RUN002 - Too many runs in progress
//	RUN003 - Run cancelled
//	RUN004 - Run timed out
//	RUN005 - Run not found
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Malformed request parameter (HTTP only, never mapped here)
//
// Typed errors are matched first with errors.As / errors.Is. Anything else
// falls back to case-insensitive substring patterns; the first match wins.
// ERR000 is the fallback: check the logs for the technical error.

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/JonMunkholm/csvclean/internal/ingest"
	"github.com/JonMunkholm/csvclean/internal/rules"
	"github.com/JonMunkholm/csvclean/internal/schema"
)

// UserMessage is a user-facing explanation of an error.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

var (
	msgConfigParse = UserMessage{
		Message: "The rules document cannot be parsed",
		Action:  "Fix the JSON/YAML syntax or remove unknown fields",
		Code:    "CFG001",
	}
	msgConfigReference = UserMessage{
		Message: "The rules reference a column or rule that cannot exist",
		Action:  "Check rename_columns, source_columns and rule names",
		Code:    "CFG002",
	}
	msgRegistration = UserMessage{
		Message: "Rule registration failed",
		Action:  "This is a build problem; contact the maintainers",
		Code:    "RULE001",
	}
	msgUnknownRule = UserMessage{
		Message: "Unknown rule",
		Action:  "Use a rule name listed by `csvclean rules`",
		Code:    "RULE002",
	}
	msgSourceMissing = UserMessage{
		Message: "Source file not found or unreadable",
		Action:  "Check the path and file permissions",
		Code:    "FILE002",
	}
	msgSourceEncoding = UserMessage{
		Message: "Unsupported source encoding",
		Action:  "Use utf-8, windows-1252, iso-8859-1 or iso-8859-15",
		Code:    "FILE003",
	}
	msgSourceRead = UserMessage{
		Message: "The source could not be read",
		Action:  "Check the file is a complete delimited text file",
		Code:    "FILE005",
	}
	msgTooManyRuns = UserMessage{
		Message: "System is busy processing other runs",
		Action:  "Please wait a moment and try again",
		Code:    "RUN002",
	}
	msgCancelled = UserMessage{
		Message: "Run was cancelled",
		Action:  "Start the run again when ready",
		Code:    "RUN003",
	}
	msgTimeout = UserMessage{
		Message: "Run timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "RUN004",
	}
)

// errorPattern maps a lowercase substring of an error message to a message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{
		pattern: "sink write failed",
		msg: UserMessage{
			Message: "Output could not be written",
			Action:  "Check the output directory exists and has free space",
			Code:    "SINK001",
		},
	},
	{
		pattern: "incomplete run",
		msg: UserMessage{
			Message: "The run did not finish and its output was not written",
			Action:  "Run the file again",
			Code:    "RUN001",
		},
	},
	{
		pattern: "open rules file",
		msg: UserMessage{
			Message: "Rules file missing or unreadable",
			Action:  "Check RULES_PATH",
			Code:    "CFG003",
		},
	},
	{
		pattern: "no config for file",
		msg: UserMessage{
			Message: "No rules are configured for this file",
			Action:  "List configured files with GET /api/configs",
			Code:    "CFG004",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file or process it with the CLI",
			Code:    "FILE001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was provided",
			Action:  "Select a CSV file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "run not found",
		msg: UserMessage{
			Message: "Run not found",
			Action:  "Runs expire after the retention period; start a new run",
			Code:    "RUN005",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user message. It returns the
// zero UserMessage for nil and ERR000 when nothing matches.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		parseErr  *schema.ParseError
		refErr    *schema.ReferenceError
		regErr    *rules.RegistrationError
		unknown   *rules.UnknownRuleError
		sourceErr *ingest.SourceError
	)
	switch {
	case errors.As(err, &parseErr):
		return msgConfigParse
	case errors.As(err, &refErr):
		return msgConfigReference
	case errors.As(err, &regErr):
		return msgRegistration
	case errors.As(err, &unknown):
		return msgUnknownRule
	case errors.As(err, &sourceErr):
		switch {
		case sourceErr.Op == "decode":
			return msgSourceEncoding
		case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission), sourceErr.Op == "open":
			return msgSourceMissing
		default:
			return msgSourceRead
		}
	case errors.Is(err, ErrTooManyRuns):
		return msgTooManyRuns
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	// Checked last: a sink or incomplete-run error may wrap a context error.
	switch {
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	}

	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	UserMessage
	Err error
}

// NewUserError wraps err with its mapped message. It returns nil for nil.
// An err that already carries a UserError keeps that message.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	var ue *UserError
	if errors.As(err, &ue) {
		return ue
	}
	return &UserError{UserMessage: MapError(err), Err: err}
}

func (e *UserError) Error() string { return e.Message }

func (e *UserError) Unwrap() error { return e.Err }
