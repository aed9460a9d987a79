// Package httputil provides JSON request/response helpers for the REST API.
package httputil

import (
	"encoding/json"
	"io"
	"net/http"

	apperrors "github.com/shopstack/storefront/internal/errors"
)

type errorBody struct {
	Code    apperrors.Code `json:"code"`
	Message string         `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// DecodeJSON decodes a request body into dst, rejecting unknown fields.
func DecodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// WriteJSON writes data as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes a ServiceError as a JSON error envelope. Non-service
// errors become a generic 500 so internals never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	svcErr := apperrors.GetServiceError(err)
	if svcErr == nil {
		svcErr = apperrors.Internal(err)
	}
	WriteJSON(w, svcErr.HTTPStatus, errorEnvelope{Error: errorBody{
		Code:    svcErr.Code,
		Message: svcErr.Message,
	}})
}
