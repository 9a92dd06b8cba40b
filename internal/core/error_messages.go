// Package core provides the business logic for joining two uploaded
// spreadsheets on their ID column.
//
// # Error Codes Reference
//
// Errors shown to users carry a code they can quote to support.
//
// # Join Errors (JOIN001-JOIN099)
//
//	JOIN001 - Missing files: one or both uploads are absent
//	          Action: Choose an ID file and a data file, then submit again
//	JOIN002 - Missing key column: a file lacks the ID column
//	          Action: Add a column headed exactly "ID" to both files
//	JOIN003 - Unreadable file: an upload is not a valid workbook or CSV
//	          Action: Re-save the file as .xlsx or .csv and try again
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Invalid CSV
//	FILE003 - Invalid workbook
//	FILE004 - Empty file
//	FILE005 - Unsupported download format
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - System busy
//	UPL002 - Request cancelled
//	UPL003 - Request timeout
//	UPL004 - Malformed upload form
//
// # History Errors (HIST001-HIST099)
//
//	HIST001 - History store unavailable
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check the logs for the original error.
//
// # Pattern Matching
//
// A *JoinError maps by kind. Anything else is matched case-insensitively
// with strings.Contains against errorPatterns; the first match wins.
package core

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var joinMessages = map[ErrorKind]UserMessage{
	KindMissingFiles: {
		Message: MissingFilesStatus,
		Action:  "Choose an ID file and a data file, then submit again",
		Code:    "JOIN001",
	},
	KindMissingKeyColumn: {
		Message: "One or both files are missing the ID column",
		Action:  "Add a column headed exactly \"ID\" to both files",
		Code:    "JOIN002",
	},
	KindUnreadableFile: {
		Message: "A file could not be read as a spreadsheet",
		Action:  "Re-save the file as .xlsx or .csv and try again",
		Code:    "JOIN003",
	},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text to user messages. Order matters:
// specific patterns come before general ones.
var errorPatterns = []errorPattern{
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Remove unused sheets or rows and try again",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Remove unused sheets or rows and try again",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure the file is comma-separated with quoted fields closed",
			Code:    "FILE002",
		},
	},
	{
		pattern: "open workbook",
		msg: UserMessage{
			Message: "File is not a valid Excel workbook",
			Action:  "Re-save the file as .xlsx",
			Code:    "FILE003",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file has no header row",
			Action:  "Upload a file with a header row and data",
			Code:    "FILE004",
		},
	},
	{
		pattern: "unsupported export format",
		msg: UserMessage{
			Message: "Unsupported download format",
			Action:  "Choose xlsx or csv",
			Code:    "FILE005",
		},
	},
	{
		pattern: "too many files being processed",
		msg: UserMessage{
			Message: "The server is busy processing other files",
			Action:  "Please wait a moment and try again",
			Code:    "UPL001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try smaller files or check your connection",
			Code:    "UPL003",
		},
	},
	{
		pattern: "invalid form",
		msg: UserMessage{
			Message: "The upload could not be read",
			Action:  "Submit both files as multipart/form-data",
			Code:    "UPL004",
		},
	},
	{
		pattern: "history store",
		msg: UserMessage{
			Message: "Run history is unavailable",
			Action:  "Please try again in a few moments",
			Code:    "HIST001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Run history is unavailable",
			Action:  "Please try again in a few moments",
			Code:    "HIST001",
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

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns an empty UserMessage for nil.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var je *JoinError
	if errors.As(err, &je) {
		if msg, ok := joinMessages[je.Kind]; ok {
			msg.Message = je.Message()
			return msg
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

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something other than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
