package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies an application error so callers (and the messaging
// middleware) can decide between rejecting, retrying, and dead-lettering.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindStateConflict
	KindVersionConflict
	KindInsufficientStock
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindStateConflict:
		return "state_conflict"
	case KindVersionConflict:
		return "version_conflict"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindTransient:
		return "transient"
	default:
		return "internal"
	}
}

// Error is the application error type carried across service layers.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two *Error values by kind, so sentinel comparisons work
// through wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func StateConflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindStateConflict, Message: fmt.Sprintf(format, args...)}
}

func VersionConflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindVersionConflict, Message: fmt.Sprintf(format, args...)}
}

func InsufficientStock(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInsufficientStock, Message: fmt.Sprintf(format, args...)}
}

func Transient(message string, err error) *Error {
	return &Error{Kind: KindTransient, Message: message, Err: err}
}

func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the Kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsRetryable reports whether redelivering the triggering message can make
// the operation succeed. Domain-invariant violations and validation
// failures are terminal: retrying cannot change the aggregate's history.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindStateConflict, KindInsufficientStock:
		return false
	case KindVersionConflict, KindTransient, KindNotFound:
		// NotFound is retryable on the consumer path: the event may have
		// arrived before the local projection of the aggregate committed.
		return true
	default:
		return false
	}
}

// HTTPStatus maps an error kind to a response status.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindStateConflict, KindVersionConflict:
		return http.StatusConflict
	case KindInsufficientStock:
		return http.StatusUnprocessableEntity
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Response is the structured success/failure body returned by controllers.
type Response struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// ErrorMiddleware renders any error attached to the gin context as a
// structured failure response.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		last := c.Errors.Last().Err
		msgs := make([]string, 0, len(c.Errors))
		for _, ginErr := range c.Errors {
			msgs = append(msgs, ginErr.Err.Error())
		}
		c.JSON(HTTPStatus(last), Response{
			Success: false,
			Message: last.Error(),
			Errors:  msgs,
		})
		c.Abort()
	}
}
