package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// ParseJSON decodes a single JSON value from the request body into dest.
// Bodies cut off by MaxBytesMiddleware report the configured limit.
func ParseJSON(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(r.Body)

	err := dec.Decode(dest)
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
	case errors.Is(err, io.EOF):
		return errors.New("request body is required")
	case err != nil:
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if dec.More() {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes a 400 response on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// ParsePathString returns a non-blank mux path variable
func ParsePathString(r *http.Request, key string) (string, error) {
	val := mux.Vars(r)[key]
	if strings.TrimSpace(val) == "" {
		return "", fmt.Errorf("missing path parameter: %s", key)
	}
	return val, nil
}

// ParsePathStringOrError is ParsePathString writing a 400 on failure
func ParsePathStringOrError(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	val, err := ParsePathString(r, key)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return "", false
	}
	return val, true
}

// ParseQueryString returns the trimmed query parameter, or defaultVal when blank
func ParseQueryString(r *http.Request, key string, defaultVal string) string {
	if val := strings.TrimSpace(r.URL.Query().Get(key)); val != "" {
		return val
	}
	return defaultVal
}
