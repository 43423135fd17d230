package core

// error_messages.go maps technical errors to user-facing messages with a
// support code. Users quote the code; support looks it up here.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate: a record with this key or code already exists
//	DB002 - Unique constraint: a value that must be unique already exists
//	DB004 - Store unavailable: the database cannot be reached
//	DB006 - Timeout: the operation timed out
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL003 - Required field is empty ("<column> es obligatorio")
//	VAL007 - Invalid code: a supplied code does not match its family format
//
// # Sequence Errors (SEQ001-SEQ099)
//
//	SEQ001 - Sequence exhausted: the family has no free code left at its width
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Invalid CSV
//	FILE003 - Unsupported delimiter or encoding
//	FILE004 - No file provided
//	FILE005 - Empty file
//
// # Import Errors (IMP001-IMP099)
//
//	IMP002 - Too many imports in progress
//	IMP004 - Request cancelled
//	IMP005 - Request timed out
//
// # Kind Errors (KIND001-KIND099)
//
//	KIND001 - Unknown import kind
//	KIND002 - Unknown code family
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the application log for the
// technical error.
//
// Entries are tried in order and the first match wins. An entry matches when
// its target (via errors.Is) and its pattern (case-insensitive substring) both
// match; an unset field always matches.

import (
	"context"
	"errors"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

type errorPattern struct {
	target  error
	pattern string
	msg     UserMessage
}

var (
	msgDuplicate = UserMessage{
		Message: "A record with this key or code already exists",
		Action:  "Review the existing record or change the value",
		Code:    "DB001",
	}
	msgUnavailable = UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}
	msgRequired = UserMessage{
		Message: "Required field is empty",
		Action:  "Ensure all required columns have values",
		Code:    "VAL003",
	}
	msgInvalidCode = UserMessage{
		Message: "Code has an invalid format",
		Action:  "Leave the code empty to have one generated, or use the documented format",
		Code:    "VAL007",
	}
)

var errorPatterns = []errorPattern{
	// Sequences
	{
		target: ErrSequenceOverflow,
		msg: UserMessage{
			Message: "No codes left in this sequence",
			Action:  "Contact an administrator to widen the code format",
			Code:    "SEQ001",
		},
	},

	// Store
	{target: ErrDuplicate, msg: msgDuplicate},
	{target: ErrStoreUnavailable, msg: msgUnavailable},
	{pattern: "duplicate key", msg: msgDuplicate},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries in your CSV",
			Code:    "DB002",
		},
	},
	{pattern: "connection refused", msg: msgUnavailable},

	// Files
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		target:  ErrMalformedInput,
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a CSV file with a header row",
			Code:    "FILE005",
		},
	},
	{
		target: ErrMalformedInput,
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Check the delimiter and that quoted fields are closed",
			Code:    "FILE002",
		},
	},
	{
		target: ErrInvalidOptions,
		msg: UserMessage{
			Message: "Unsupported delimiter or encoding",
			Action:  "Use one of , ; tab and utf-8, windows-1252 or latin1",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was provided",
			Action:  "Send the CSV as the file field or as a text/csv body",
			Code:    "FILE004",
		},
	},

	// Imports
	{
		target: ErrTooManyImports,
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "IMP002",
		},
	},
	{
		target: context.Canceled,
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "IMP004",
		},
	},
	{
		target: context.DeadlineExceeded,
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try importing a smaller file",
			Code:    "IMP005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try again later",
			Code:    "DB006",
		},
	},

	// Kinds
	{
		target: ErrUnknownKind,
		msg: UserMessage{
			Message: "Unknown import kind",
			Action:  "List the available kinds at /api/kinds",
			Code:    "KIND001",
		},
	},
	{
		target: ErrUnknownFamily,
		msg: UserMessage{
			Message: "Unknown code family",
			Action:  "Verify the family name is correct",
			Code:    "KIND002",
		},
	},

	// Validation
	{pattern: "es obligatorio", msg: msgRequired},
	{pattern: "required field", msg: msgRequired},
	{pattern: "invalid format", msg: msgInvalidCode},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Conflict errors map to DB001 regardless of their text. If nothing matches,
// the ERR000 fallback is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if _, ok := AsConflict(err); ok {
		return msgDuplicate
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if ep.target != nil && !errors.Is(err, ep.target) {
			continue
		}
		if ep.pattern != "" && !strings.Contains(errStr, ep.pattern) {
			continue
		}
		return ep.msg
	}

	return defaultMessage
}
