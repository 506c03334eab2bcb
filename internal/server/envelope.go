// Package server implements the HTTP/JSON wire interface:
// a thin net/http layer over the docvault library, one handler per
// endpoint, wrapping every non-raw response in the uniform envelope.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/docvault-db/docvault"
)

// envelope is the uniform response wrapper every non-raw endpoint
// returns.
type envelope struct {
	Success          bool              `json:"success"`
	StatusCode       int               `json:"statusCode"`
	ErrorMessage     string            `json:"errorMessage,omitempty"`
	Data             interface{}       `json:"data,omitempty"`
	Headers          map[string]string `json:"headers,omitempty"`
	ProcessingTimeMs int64             `json:"processingTimeMs"`
	GUID             string            `json:"guid,omitempty"`
	TimestampUTC     string            `json:"timestampUtc"`
}

func (s *Server) writeOK(w http.ResponseWriter, start time.Time, status int, data interface{}) {
	s.writeEnvelope(w, start, status, true, "", data)
}

func (s *Server) writeError(w http.ResponseWriter, start time.Time, err error) {
	s.writeEnvelope(w, start, statusForError(err), false, err.Error(), errorData(err))
}

func (s *Server) writeEnvelope(w http.ResponseWriter, start time.Time, status int, success bool, errMsg string, data interface{}) {
	env := envelope{
		Success:          success,
		StatusCode:       status,
		ErrorMessage:     errMsg,
		Data:             data,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		GUID:             uuid.NewString(),
		TimestampUTC:     time.Now().UTC().Format(time.RFC3339Nano),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

// errorData attaches the kind-specific payload: field
// errors for a validation failure, lock metadata for a 409.
func errorData(err error) interface{} {
	var derr *docvault.Error
	if !errors.As(err, &derr) {
		return nil
	}
	switch derr.Kind {
	case docvault.KindSchemaValidationFailed:
		return map[string]interface{}{"Errors": derr.FieldErrors}
	case docvault.KindDocumentLocked:
		if derr.Lock == nil {
			return nil
		}
		return map[string]interface{}{
			"CollectionId":     derr.Lock.CollectionID,
			"DocumentName":     derr.Lock.DocumentName,
			"LockedByHostname": derr.Lock.Hostname,
			"LockCreatedUtc":   derr.Lock.CreatedUTC,
		}
	default:
		return nil
	}
}

// statusForError maps a docvault error kind onto its HTTP status code.
func statusForError(err error) int {
	var derr *docvault.Error
	if !errors.As(err, &derr) {
		return http.StatusInternalServerError
	}
	switch derr.Kind {
	case docvault.KindInvalidInput, docvault.KindSchemaValidationFailed, docvault.KindFieldNotIndexed:
		return http.StatusBadRequest
	case docvault.KindNotFound:
		return http.StatusNotFound
	case docvault.KindDocumentLocked:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
