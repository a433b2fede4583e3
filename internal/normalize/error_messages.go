// # Error Codes Reference
//
// Errors returned by the engine, the profile registry, the sheet readers
// and the HTTP layer are mapped to user-facing messages with a code that
// can be quoted to support.
//
// # Profile Errors (PRF001-PRF099)
//
//	PRF001 - Profile not found: No supplier profile with this name
//	         Action: Check the profile name against GET /api/profiles
//	         Patterns: "profile not found"
//
//	PRF002 - Invalid profile: The supplier profile could not be loaded
//	         Action: Fix the profile file; the error lists every problem
//	         Patterns: "invalid profile"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the upload size limit
//	          Action: Split the price list into smaller files
//	          Patterns: "file too large", "request body too large"
//
//	FILE002 - Invalid CSV: File is not a valid CSV
//	          Action: Export the sheet again as CSV or XLSX
//	          Patterns: "invalid csv"
//
//	FILE003 - Unsupported format: File is neither CSV nor XLSX
//	          Action: Upload a .csv or .xlsx file
//	          Patterns: "unsupported format"
//
//	FILE004 - No file: No file was selected
//	          Action: Please select a file to upload
//	          Patterns: "no file provided"
//
//	FILE005 - Empty file: The uploaded file is empty
//	          Action: Upload a file with a header and data rows
//	          Patterns: "empty file"
//
//	FILE006 - Invalid grid: The grid body is not valid JSON
//	          Action: Send {"header": [...], "rows": [[...], ...]}
//	          Patterns: "invalid grid"
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - System busy: Too many uploads in progress
//	         Action: Please wait a moment and try again
//	         Patterns: "too many uploads"
//
//	UPL002 - Request cancelled: Request was cancelled
//	         Patterns: "context canceled"
//
//	UPL003 - Request timeout: Request timed out
//	         Patterns: "context deadline exceeded"
//
// # History Errors (HIS001-HIS099)
//
//	HIS001 - History unavailable: Run history is not configured or unreachable
//	         Patterns: "history unavailable", "connection refused"
//
//	HIS002 - Run not found: No stored run with this id
//	         Patterns: "run not found"
//
// # Default Error (GEN000)
//
// Fallback when no pattern matches. Check the application logs for the
// technical error.
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.

package normalize

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user
// messages. Order matters: the first match wins.
var errorPatterns = []errorPattern{
	// Profiles
	{
		pattern: "profile not found",
		msg: UserMessage{
			Message: "No supplier profile with this name",
			Action:  "Check the profile name against the profile list",
			Code:    "PRF001",
		},
	},
	{
		pattern: "invalid profile",
		msg: UserMessage{
			Message: "The supplier profile could not be loaded",
			Action:  "Fix the profile file; the error lists every problem",
			Code:    "PRF002",
		},
	},

	// Files
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the upload size limit",
			Action:  "Split the price list into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the upload size limit",
			Action:  "Split the price list into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Export the sheet again as CSV or XLSX",
			Code:    "FILE002",
		},
	},
	{
		pattern: "unsupported format",
		msg: UserMessage{
			Message: "File is neither CSV nor XLSX",
			Action:  "Upload a .csv or .xlsx file",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Upload a file with a header and data rows",
			Code:    "FILE005",
		},
	},
	{
		pattern: "invalid grid",
		msg: UserMessage{
			Message: "The grid body is not valid JSON",
			Action:  `Send {"header": [...], "rows": [[...], ...]}`,
			Code:    "FILE006",
		},
	},

	// Uploads
	{
		pattern: "too many uploads",
		msg: UserMessage{
			Message: "System is busy processing other uploads",
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
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL003",
		},
	},

	// History
	{
		pattern: "history unavailable",
		msg: UserMessage{
			Message: "Run history is not available",
			Action:  "Configure DATABASE_URL to keep run history",
			Code:    "HIS001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to the history database",
			Action:  "Please try again in a few moments",
			Code:    "HIS001",
		},
	},
	{
		pattern: "run not found",
		msg: UserMessage{
			Message: "No stored run with this id",
			Action:  "Check the run id against the run list",
			Code:    "HIS002",
		},
	},
}

// defaultMessage is returned when no pattern matches (GEN000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "GEN000",
}

// MapError converts a technical error to a user-friendly message. If no
// pattern matches, the GEN000 fallback is returned.
//
// Example:
//
//	_, err := registry.Load("nosuch")
//	msg := MapError(err)
//	// msg.Code == "PRF001"
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

// FormatUserError formats an error as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
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
