package service

// messages.go turns technical errors into messages safe to show a user.
//
// Codes by category:
//
//	FILE001 - File too large          (patterns: "file too large", "request body too large")
//	FILE002 - Unreadable CSV          (ErrSourceUnavailable, "parse error")
//	FILE004 - No file                 ("no file provided")
//	REG001  - Duplicate account       (store.ErrDuplicateAccount)
//	REG002  - Export failed           (ErrSinkUnavailable)
//	UPL002  - System busy             (ErrTooManyUploads)
//	UPL003  - Upload not found        (ErrUploadNotFound)
//	UPL004  - Request cancelled       (context.Canceled)
//	UPL005  - Request timed out       (context.DeadlineExceeded)
//	DB004   - Database unreachable    ("connection refused")
//	DB005   - Connection interrupted  ("connection reset")
//	ERR000  - Anything else
//
// Sentinel errors are checked with errors.Is first. Patterns are then matched
// case-insensitively against the error text, first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/register/internal/registration"
	"github.com/JonMunkholm/register/internal/store"
)

// UserMessage is a user-facing description of an error.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Reference for support
}

var (
	msgFileTooLarge = UserMessage{"File exceeds the maximum upload size", "Split the file into smaller chunks", "FILE001"}
	msgBadCSV       = UserMessage{"The file could not be read as CSV", "Save the file as UTF-8 comma-separated values", "FILE002"}
	msgNoFile       = UserMessage{"No file was selected", "Please select a CSV file to upload", "FILE004"}
	msgDuplicate    = UserMessage{"An account with this phone number or social id was registered concurrently", "Upload the file again to re-check against existing accounts", "REG001"}
	msgExport       = UserMessage{"Registered accounts could not be exported", "Please try again", "REG002"}
	msgBusy         = UserMessage{"System is busy processing other uploads", "Please wait a moment and try again", "UPL002"}
	msgNotFound     = UserMessage{"Upload not found", "The result may have expired. Please upload the file again", "UPL003"}
	msgCancelled    = UserMessage{"Request was cancelled", "Please try again", "UPL004"}
	msgTimeout      = UserMessage{"Request timed out", "Try a smaller file or try again later", "UPL005"}
	msgDBDown       = UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}
	msgDBReset      = UserMessage{"Database connection was interrupted", "Please try again", "DB005"}

	defaultMessage = UserMessage{"An unexpected error occurred", "Please try again or contact support", "ERR000"}
)

var sentinelMessages = []struct {
	target error
	msg    UserMessage
}{
	{store.ErrDuplicateAccount, msgDuplicate},
	{ErrTooManyUploads, msgBusy},
	{ErrUploadNotFound, msgNotFound},
	{ErrNoFile, msgNoFile},
	{ErrFileTooLarge, msgFileTooLarge},
	{registration.ErrSinkUnavailable, msgExport},
	{context.DeadlineExceeded, msgTimeout},
	{context.Canceled, msgCancelled},
	{registration.ErrSourceUnavailable, msgBadCSV},
}

var errorPatterns = []struct {
	pattern string
	msg     UserMessage
}{
	{"request body too large", msgFileTooLarge},
	{"file too large", msgFileTooLarge},
	{"no file provided", msgNoFile},
	{"parse error", msgBadCSV},
	{"connection refused", msgDBDown},
	{"connection reset", msgDBReset},
}

// MapError converts err to a user-facing message. A nil error yields the
// zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.target) {
			return s.msg
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
