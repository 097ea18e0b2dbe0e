package core

// # Error Codes Reference
//
// User-facing messages carry a code so a user can quote it to support.
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid input: The data could not be cleaned
//	         Action: Check the file contents and try again
//	         Sentinel: dataset.ErrInvalidInput
//
//	VAL002 - Missing column: Required column is missing from CSV
//	         Action: Make sure the file has email and signup_date columns
//	         Patterns: "missing required column"
//
//	VAL003 - Bad request: A request field is missing or malformed
//	         Action: Check the request and try again
//	         Patterns: "invalid request"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds maximum size limit
//	          Action: Split the file into smaller chunks
//	          Patterns: "file too large"
//
//	FILE002 - Invalid CSV: File is not a valid CSV
//	          Action: Ensure file is comma-separated with consistent columns
//	          Patterns: "invalid csv"
//
//	FILE003 - Not a CSV: Only .csv files are accepted
//	          Action: Upload a file with a .csv extension
//	          Patterns: "only csv files"
//
//	FILE004 - No file: No file was selected
//	          Action: Please select a CSV file to upload
//	          Patterns: "no file provided"
//
//	FILE005 - Empty file: The uploaded file is empty
//	          Action: Please upload a CSV file with data rows
//	          Patterns: "empty file"
//
//	FILE006 - Not found: The requested file or record does not exist
//	          Action: Check the id and try again
//	          Sentinel: ErrNotFound
//
//	FILE007 - Storage failure: A stored file could not be read or written
//	          Action: Please try again later
//	          Sentinel: ErrIOFailure
//
// # Auth Errors (AUTH001-AUTH099)
//
//	AUTH001 - Invalid credentials: Incorrect email or password
//	          Action: Check your email and password
//	          Sentinel: auth.ErrInvalidCredentials
//
//	AUTH002 - Invalid token: The access token is missing, expired or invalid
//	          Action: Log in again
//	          Sentinel: auth.ErrInvalidToken
//
//	AUTH003 - Forbidden: You do not have access to this resource
//	          Action: Request only your own history
//	          Sentinel: ErrForbidden
//
//	AUTH004 - Email taken: Email already registered
//	          Action: Log in instead, or register with another email
//	          Sentinel: ErrEmailTaken
//
// # Cleaning Errors (CLN001-CLN099)
//
//	CLN001 - System busy: Too many cleaning jobs in progress
//	         Action: Please wait a moment and try again
//	         Sentinel: ErrTooManyJobs
//
//	CLN002 - Request timeout: Cleaning took too long
//	         Action: Try a smaller file or try again later
//	         Patterns: "context deadline exceeded"
//
//	CLN003 - Request cancelled: Request was cancelled
//	         Action: Please try again
//	         Patterns: "context canceled"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Connection refused: Unable to connect to database
//	        Action: Please try again in a few moments
//	        Patterns: "connection refused"
//
//	DB002 - Connection reset: Database connection was interrupted
//	        Action: Please try again
//	        Patterns: "connection reset"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Rate limited: Too many requests
//	          Action: Please wait a moment before trying again
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// Matching runs in three passes: priorityPatterns, then sentinels with
// errors.Is, then errorPatterns. Patterns are matched case-insensitively with
// strings.Contains and the first match wins.

import (
	"errors"
	"strings"

	"github.com/JonMunkholm/DataClean/internal/auth"
	"github.com/JonMunkholm/DataClean/internal/dataset"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

// Patterns are consulted before sentinels where a pattern is more specific
// than the sentinel it is wrapped in (a missing column is also InvalidInput).
var priorityPatterns = []errorPattern{
	{
		pattern: "missing required column",
		msg: UserMessage{
			Message: "Required column is missing from CSV",
			Action:  "Make sure the file has email and signup_date columns",
			Code:    "VAL002",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure file is comma-separated with consistent columns",
			Code:    "FILE002",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a CSV file with data rows",
			Code:    "FILE005",
		},
	},
}

var sentinelMessages = []sentinelMessage{
	{
		err: ErrTooManyJobs,
		msg: UserMessage{
			Message: "System is busy processing other cleaning jobs",
			Action:  "Please wait a moment and try again",
			Code:    "CLN001",
		},
	},
	{
		err: auth.ErrInvalidCredentials,
		msg: UserMessage{
			Message: "Incorrect email or password",
			Action:  "Check your email and password",
			Code:    "AUTH001",
		},
	},
	{
		err: auth.ErrInvalidToken,
		msg: UserMessage{
			Message: "Invalid authentication credentials",
			Action:  "Log in again",
			Code:    "AUTH002",
		},
	},
	{
		err: ErrForbidden,
		msg: UserMessage{
			Message: "You do not have access to this resource",
			Action:  "Request only your own history",
			Code:    "AUTH003",
		},
	},
	{
		err: ErrEmailTaken,
		msg: UserMessage{
			Message: "Email already registered",
			Action:  "Log in instead, or register with another email",
			Code:    "AUTH004",
		},
	},
	{
		err: ErrNotFound,
		msg: UserMessage{
			Message: "The requested file or record does not exist",
			Action:  "Check the id and try again",
			Code:    "FILE006",
		},
	},
	{
		err: dataset.ErrInvalidInput,
		msg: UserMessage{
			Message: "The data could not be cleaned",
			Action:  "Check the file contents and try again",
			Code:    "VAL001",
		},
	},
	{
		err: ErrIOFailure,
		msg: UserMessage{
			Message: "A stored file could not be read or written",
			Action:  "Please try again later",
			Code:    "FILE007",
		},
	},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "only csv files",
		msg: UserMessage{
			Message: "Only CSV files are accepted",
			Action:  "Upload a file with a .csv extension",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "invalid request",
		msg: UserMessage{
			Message: "A request field is missing or malformed",
			Action:  "Check the request and try again",
			Code:    "VAL003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Cleaning took too long",
			Action:  "Try a smaller file or try again later",
			Code:    "CLN002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "CLN003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB002",
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

// defaultMessage is returned when nothing matches (ERR000). Support staff
// should check application logs for the original technical error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	err := fmt.Errorf("load: %w", core.ErrNotFound)
//	msg := MapError(err)
//	// msg.Code == "FILE006"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range priorityPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
