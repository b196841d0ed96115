package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/octobrain/octobrain/internal/ferrors"
)

// JSON-RPC reserved codes, per the MCP spec.
const (
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Domain-specific codes, mirrored from octobrain's ferrors.Kind taxonomy.
const (
	ErrCodeNotFound               = -32001
	ErrCodeAmbiguous              = -32002
	ErrCodeEmbedderUnavailable    = -32003
	ErrCodeFetchFailed            = -32004
	ErrCodeEmbeddingModelMismatch = -32005
	ErrCodeCorruption             = -32006
	ErrCodeConflict               = -32007
)

var (
	ErrToolNotFound     = errors.New("tool not found")
	ErrResourceNotFound = errors.New("resource not found")
)

// MCPError is the JSON-RPC-shaped error octobrain's MCP tool handlers
// return to clients.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError translates an internal error into an MCPError. ferrors.Error
// values are mapped by Kind; everything else falls back to a generic
// internal error so callers never leak unclassified internals.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var fe *ferrors.Error
	if errors.As(err, &fe) {
		return mapFerror(fe)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeInternalError, Message: "request timed out"}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeInternalError, Message: "request was canceled"}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "tool not found"}
	case errors.Is(err, ErrResourceNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "resource not found"}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "internal server error"}
	}
}

func mapFerror(fe *ferrors.Error) *MCPError {
	message := fe.Error()
	switch ferrors.GetKind(fe) {
	case ferrors.InvalidInput:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case ferrors.NotFound:
		return &MCPError{Code: ErrCodeNotFound, Message: message}
	case ferrors.Ambiguous:
		return &MCPError{Code: ErrCodeAmbiguous, Message: message}
	case ferrors.EmbedderUnavailable:
		return &MCPError{Code: ErrCodeEmbedderUnavailable, Message: message}
	case ferrors.FetchFailed:
		return &MCPError{Code: ErrCodeFetchFailed, Message: message}
	case ferrors.EmbeddingModelMismatch:
		return &MCPError{Code: ErrCodeEmbeddingModelMismatch, Message: message}
	case ferrors.Corruption:
		return &MCPError{Code: ErrCodeCorruption, Message: message}
	case ferrors.Conflict:
		return &MCPError{Code: ErrCodeConflict, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}

func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("tool %q not found", name)}
}

func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("resource %q not found", uri)}
}
