package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

// maxBodyBytes bounds JSON request bodies; login payloads are tiny.
const maxBodyBytes = 64 << 10

// Request is what inbound handlers receive.
type Request struct {
	*http.Request
}

// DecodeBody reads exactly one JSON object into dst. Unknown fields, trailing
// data and oversized bodies are rejected as invalid format errors.
func (r *Request) DecodeBody(dst any) error {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return goerror.NewInvalidFormat("Request body is required")
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return goerror.NewInvalidFormat(decodeMessage(err))
	}
	if dec.More() || dec.Decode(&struct{}{}) != io.EOF {
		return goerror.NewInvalidFormat("Request body must contain a single JSON object")
	}

	return nil
}

func decodeMessage(err error) string {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return "Request body is not valid JSON"
	case errors.As(err, &typeErr):
		return fmt.Sprintf("Field %q has the wrong type", typeErr.Field)
	case errors.Is(err, io.EOF):
		return "Request body is required"
	default:
		// json reports unknown fields only as text.
		return "Invalid request body"
	}
}
