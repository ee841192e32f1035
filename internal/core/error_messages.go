package core

// error_messages.go maps technical errors to user-friendly messages with
// codes for support reference. When users encounter errors, they can quote
// the code to support staff for faster diagnosis.
//
// # Input Errors (IN001-IN099)
//
//	IN001 - No spreadsheets: nothing was uploaded to merge
//	        Patterns: "no tables to merge", "no files uploaded"
//
//	IN002 - Column not found: a selected column is not in the merged table
//	        Patterns: "column not found"
//
//	IN003 - Malformed upload: the request was not a readable multipart form
//	        Patterns: "invalid upload form"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large        Patterns: "file too large", "request body too large"
//	FILE002 - Unsupported format    Patterns: "unsupported file type"
//	FILE003 - Unreadable file       Patterns: "unreadable file"
//	FILE004 - Too many files        Patterns: "too many files"
//	FILE005 - Empty file            Patterns: "empty file" (checked before FILE003)
//
// # Upload and Session Errors (UPL001-UPL099)
//
//	UPL001 - Busy                   Patterns: "too many uploads"
//	UPL002 - Session expired        Patterns: "session not found"
//	UPL003 - Out of order step      Patterns: "invalid session stage"
//	UPL004 - Cancelled              Patterns: "context canceled"
//	UPL005 - Timed out              Patterns: "context deadline exceeded", "timeout"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests     Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check the application logs for the
// technical error, keyed by request_id.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so more specific patterns come first.
var errorPatterns = []errorPattern{
	// Input errors
	{
		pattern: "no tables to merge",
		msg: UserMessage{
			Message: "No spreadsheets were provided",
			Action:  "Upload one or more .xlsx files to merge",
			Code:    "IN001",
		},
	},
	{
		pattern: "no files uploaded",
		msg: UserMessage{
			Message: "No spreadsheets were provided",
			Action:  "Upload one or more .xlsx files to merge",
			Code:    "IN001",
		},
	},
	{
		pattern: "column not found",
		msg: UserMessage{
			Message: "The selected column is not in the merged data",
			Action:  "Re-select the name and contact columns from the list",
			Code:    "IN002",
		},
	},
	{
		pattern: "invalid upload form",
		msg: UserMessage{
			Message: "The upload could not be read",
			Action:  "Choose the files again and resubmit the form",
			Code:    "IN003",
		},
	},

	// File errors
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the workbook into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the workbook into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "File is not an .xlsx workbook or CSV file",
			Action:  "Save the file as .xlsx (Excel Workbook) and upload it again",
			Code:    "FILE002",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Upload a spreadsheet with a header row",
			Code:    "FILE005",
		},
	},
	{
		pattern: "unreadable file",
		msg: UserMessage{
			Message: "A file could not be read as a spreadsheet",
			Action:  "Check that the file opens in Excel, then upload it again",
			Code:    "FILE003",
		},
	},
	{
		pattern: "too many files",
		msg: UserMessage{
			Message: "Too many files in one upload",
			Action:  "Upload fewer files at a time",
			Code:    "FILE004",
		},
	},

	// Upload and session errors
	{
		pattern: "too many uploads",
		msg: UserMessage{
			Message: "System is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    "UPL001",
		},
	},
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "Your session has expired",
			Action:  "Upload your files again to start over",
			Code:    "UPL002",
		},
	},
	{
		pattern: "invalid session stage",
		msg: UserMessage{
			Message: "That step is not available yet",
			Action:  "Upload files and choose columns first",
			Code:    "UPL003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try smaller files or check your connection",
			Code:    "UPL005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try smaller files or check your connection",
			Code:    "UPL005",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first pattern match (case-insensitive) or the ERR000 fallback.
//
// Example:
//
//	msg := MapError(&ColumnNotFoundError{Column: "Phone"})
//	// msg.Code == "IN002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
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
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
