// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - Machine-readable output for --json.

package cli

import (
	"encoding/json"
	"io"
	"time"
)

// JSONResponse wraps every --json result.
type JSONResponse struct {
	Success   bool    `json:"success"`
	Data      any     `json:"data"`
	Error     *string `json:"error"`
	ErrorType string  `json:"error_type,omitempty"`
	Timestamp string  `json:"timestamp"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// NewJSONErrorResponse creates an error response.
func NewJSONErrorResponse(err error) *JSONResponse {
	msg := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &msg,
		ErrorType: errorType(err),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func errorType(err error) string {
	switch GetExitCode(err) {
	case ExitUsageError:
		return "usage"
	case ExitNotFoundError:
		return "not_found"
	case ExitStreamError:
		return "malformed_stream"
	case ExitTimeoutError:
		return "timeout"
	case ExitNetworkError:
		return "transport"
	case ExitConfigError:
		return "configuration"
	default:
		return "error"
	}
}

// writeJSON writes data wrapped in a JSONResponse.
func writeJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewJSONResponse(data))
}
