package service

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/MimeLyc/bilingual-subs/internal/batch"
	"github.com/MimeLyc/bilingual-subs/internal/subtitle"
	"github.com/MimeLyc/bilingual-subs/pkg/log"
)

type ErrorType int

const (
	ErrFileRead ErrorType = iota
	ErrFileWrite
	ErrDecode
	ErrParse
	ErrTranslation
	ErrAlignment
	ErrConfig
	ErrMux
	ErrPersistence
	ErrUnknown
)

// Error is the typed error returned for a failed file or run.
type Error struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrFileRead:
		return "FileRead"
	case ErrFileWrite:
		return "FileWrite"
	case ErrDecode:
		return "Decode"
	case ErrParse:
		return "Parse"
	case ErrTranslation:
		return "Translation"
	case ErrAlignment:
		return "Alignment"
	case ErrConfig:
		return "Config"
	case ErrMux:
		return "Mux"
	case ErrPersistence:
		return "Persistence"
	default:
		return "Unknown"
	}
}

type ErrorHandler interface {
	Handle(err error) bool
	GetAdvice(err *Error) string
}

type DefaultErrorHandler struct{}

func NewDefaultErrorHandler() ErrorHandler {
	return &DefaultErrorHandler{}
}

func (h *DefaultErrorHandler) Handle(err error) bool {
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		log.Error("Unknown Error: %v", err)
		return false
	}

	log.Error("Error Detail: %v\n advice: %s", err, h.GetAdvice(svcErr))
	return true
}

// GetAdvice returns error handling advice
func (h *DefaultErrorHandler) GetAdvice(err *Error) string {
	switch err.Type {
	case ErrFileRead:
		return "Please check that the subtitle file exists and is readable"
	case ErrFileWrite:
		return "Please ensure the media directory is writable; the original file was left unchanged"
	case ErrDecode:
		return "The subtitle is not UTF-8; convert it (for example with iconv) and run again"
	case ErrParse:
		return "The subtitle is not valid SRT; check the reported line, a missing blank line between captions is the usual cause"
	case ErrTranslation:
		return "Please check the translator credentials, network connectivity and quota"
	case ErrAlignment:
		return "The translator did not keep the segment delimiter; the file was left unchanged and will be retried on the next run"
	case ErrConfig:
		return "Please check that configuration files or environment variables are set correctly"
	case ErrMux:
		return "Please check that ffmpeg is installed and can read the video"
	case ErrPersistence:
		return "Please check that DB_PATH points to a writable location"
	default:
		return "Please review detailed error information and check relevant configuration and files"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Type == errorType
	}
	return false
}

func WrapError(err error, errorType ErrorType, message string) *Error {
	return NewErrorWithCause(errorType, message, err)
}

// classify picks the error type for a failure from the subtitle or
// batch layers.
func classify(err error) ErrorType {
	var (
		decodeErr *subtitle.DecodeError
		parseErr  *subtitle.ParseError
		alignErr  *batch.AlignmentError
	)
	switch {
	case errors.As(err, &decodeErr):
		return ErrDecode
	case errors.As(err, &parseErr):
		return ErrParse
	case errors.As(err, &alignErr):
		return ErrAlignment
	default:
		return ErrTranslation
	}
}

// SafeExecute runs fn and turns a panic into an ErrUnknown error.
func SafeExecute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(ErrUnknown, fmt.Sprintf("runtime error: %v", r))
		}
	}()

	return fn()
}
