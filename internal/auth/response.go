package auth

import (
	"encoding/json"
	"net/http"
)

// contentTypeJSON is the content type set on every envelope response.
const contentTypeJSON = "application/json; charset=utf-8"

// Envelope is the uniform response body. Data is omitted entirely when
// absent, never serialized as null.
type Envelope struct {
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
	Data         any    `json:"data,omitempty"`
}

// NewSuccessEnvelope returns the success envelope wrapping the given data.
func NewSuccessEnvelope(data any) Envelope {
	return Envelope{
		ErrorCode:    CodeSuccess,
		ErrorMessage: MessageSuccess,
		Data:         data,
	}
}

// NewErrorEnvelope returns the envelope for an authentication error.
func NewErrorEnvelope(err *Error) Envelope {
	if err == nil {
		err = ErrInternal
	}
	return Envelope{
		ErrorCode:    err.Code,
		ErrorMessage: err.Message,
	}
}

// WriteDenial writes the 401 denial envelope for an authentication error.
func WriteDenial(w http.ResponseWriter, err *Error) {
	WriteEnvelope(w, http.StatusUnauthorized, NewErrorEnvelope(err))
}

// WriteEnvelope writes an envelope with the given status code.
func WriteEnvelope(w http.ResponseWriter, status int, envelope Envelope) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	// The envelope is a flat struct of serializable fields; encoding
	// cannot fail in a way the client could still be told about.
	_ = json.NewEncoder(w).Encode(envelope)
}
