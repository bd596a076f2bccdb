package core

// # Error Codes Reference
//
// This file maps errors to user-friendly messages with codes for support
// reference. Known errors are recognized with errors.Is first; errors that
// only arrive as text (driver or parser messages) fall back to
// case-insensitive substring patterns.
//
// # Configuration Errors (CFG001-CFG099)
//
//	CFG001 - Unknown target type
//	         Action: Use text, integer, big_integer, float, boolean or timestamp
//	CFG002 - Invalid max length
//	         Action: Use a positive number of characters
//	CFG003 - Column has no configuration
//	         Action: Add a type for every selected column
//	CFG004 - Column not in file
//	         Action: Check the column name against the file header
//	CFG005 - No columns selected
//	         Action: Select at least one column to export
//	CFG006 - Column selected twice
//	         Action: Remove the duplicate selection
//	CFG007 - Plan document unreadable
//	         Action: Check the plan JSON against the documented format
//	CFG008 - Column setting unreadable
//	         Action: Write settings as name=type or name=text:50
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Unsupported format
//	FILE003 - Empty file
//	FILE004 - Sheet not found
//	FILE005 - No file provided
//	FILE006 - Unreadable workbook or CSV
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - Character not representable in the chosen encoding
//	EXP002 - Unsupported separator
//	EXP003 - Unsupported encoding
//
// # Conversion Errors (CONV001-CONV099)
//
//	CONV001 - Too many conversions in progress
//	CONV002 - Request cancelled
//	CONV003 - Request timed out
//
// # Request Errors (REQ001)
//
//	REQ001 - Malformed form or query parameters
//
// # Rate Limiting (RATE001)
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Support staff should check the application
// logs for the original technical error when users report ERR000.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`          // What happened (user-friendly)
	Action  string `json:"action"`           // What to do about it
	Code    string `json:"code"`             // Error code for support reference
	Column  string `json:"column,omitempty"` // Offending column, for configuration errors
}

// sentinelMessage maps a sentinel error to its user message.
type sentinelMessage struct {
	err error
	msg UserMessage
}

// sentinelMessages is checked in order with errors.Is.
var sentinelMessages = []sentinelMessage{
	// Configuration errors
	{ErrUnknownTargetType, UserMessage{
		Message: "Unknown target type",
		Action:  "Use text, integer, big_integer, float, boolean or timestamp",
		Code:    "CFG001",
	}},
	{ErrInvalidMaxLength, UserMessage{
		Message: "Max length must be a positive number",
		Action:  "Use a positive number of characters",
		Code:    "CFG002",
	}},
	{ErrMissingConfig, UserMessage{
		Message: "A selected column has no configuration",
		Action:  "Add a type for every selected column",
		Code:    "CFG003",
	}},
	{ErrColumnNotFound, UserMessage{
		Message: "Column not found in the file",
		Action:  "Check the column name against the file header",
		Code:    "CFG004",
	}},
	{ErrNoColumnsSelected, UserMessage{
		Message: "No columns selected",
		Action:  "Select at least one column to export",
		Code:    "CFG005",
	}},
	{ErrDuplicateColumn, UserMessage{
		Message: "A column was selected more than once",
		Action:  "Remove the duplicate selection",
		Code:    "CFG006",
	}},

	// File errors
	{ErrFileTooLarge, UserMessage{
		Message: "File exceeds the maximum size limit",
		Action:  "Split the workbook or remove unused sheets",
		Code:    "FILE001",
	}},
	{ErrUnsupportedFormat, UserMessage{
		Message: "Unsupported file format",
		Action:  "Upload an .xlsx or .csv file",
		Code:    "FILE002",
	}},
	{ErrEmptyFile, UserMessage{
		Message: "The file has no header row",
		Action:  "Upload a file whose first row holds the column names",
		Code:    "FILE003",
	}},
	{ErrSheetNotFound, UserMessage{
		Message: "Sheet not found in the workbook",
		Action:  "Check the sheet name or leave it empty for the first sheet",
		Code:    "FILE004",
	}},
	{ErrNoFile, UserMessage{
		Message: "No file was selected",
		Action:  "Please select a spreadsheet to convert",
		Code:    "FILE005",
	}},

	// Export errors
	{ErrUnencodable, UserMessage{
		Message: "The data contains characters the chosen encoding cannot represent",
		Action:  "Export as utf-8 or utf-8-sig instead",
		Code:    "EXP001",
	}},
	{ErrInvalidSeparator, UserMessage{
		Message: "Unsupported separator",
		Action:  "Use comma, semicolon, pipe or tab",
		Code:    "EXP002",
	}},
	{ErrInvalidEncoding, UserMessage{
		Message: "Unsupported output encoding",
		Action:  "Use utf-8-sig, utf-8, latin1 or iso-8859-1",
		Code:    "EXP003",
	}},

	// Conversion errors
	{ErrTooManyConversions, UserMessage{
		Message: "System is busy processing other conversions",
		Action:  "Please wait a moment and try again",
		Code:    "CONV001",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "CONV002",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "CONV003",
	}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user
// messages for errors that carry no sentinel. The first match wins, so more
// specific patterns come first.
var errorPatterns = []errorPattern{
	{
		pattern: "decode plan",
		msg: UserMessage{
			Message: "The plan document could not be read",
			Action:  "Check the plan JSON against the documented format",
			Code:    "CFG007",
		},
	},
	{
		pattern: "expected name=type",
		msg: UserMessage{
			Message: "A column setting could not be read",
			Action:  "Write settings as name=type or name=text:50",
			Code:    "CFG008",
		},
	},
	{
		pattern: "http: request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the workbook or remove unused sheets",
			Code:    "FILE001",
		},
	},
	{
		pattern: "not a valid zip file",
		msg: UserMessage{
			Message: "The workbook could not be read",
			Action:  "Save the file again as .xlsx and retry",
			Code:    "FILE006",
		},
	},
	{
		pattern: "read workbook",
		msg: UserMessage{
			Message: "The workbook could not be read",
			Action:  "Save the file again as .xlsx and retry",
			Code:    "FILE006",
		},
	},
	{
		pattern: "read csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure the file is delimited with consistent quoting",
			Code:    "FILE006",
		},
	},
	{
		pattern: "invalid request",
		msg: UserMessage{
			Message: "The request could not be read",
			Action:  "Send the file as multipart form data in the \"file\" field",
			Code:    "REQ001",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Sentinel errors are matched through the wrap chain first, then the error
// text is searched for known patterns. Configuration errors carry the
// offending column.
//
// Example:
//
//	err := &ConfigError{Column: "Age", Err: ErrColumnNotFound}
//	msg := MapError(err)
//	// msg.Code == "CFG004", msg.Column == "Age"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	msg := lookupMessage(err)
	var ce *ConfigError
	if errors.As(err, &ce) {
		msg.Column = ce.Column
	}
	return msg
}

func lookupMessage(err error) UserMessage {
	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action", with the column appended to
// the message when known.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	text := msg.Message
	if msg.Column != "" {
		text = fmt.Sprintf("%s: %q", text, msg.Column)
	}
	return fmt.Sprintf("%s (Code: %s). %s", text, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-friendly message.
// The original error is preserved for logging.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
