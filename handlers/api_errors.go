package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/aerialworks/dronearchive/archive"
)

// error codes used across the API
const (
	CodeValidation = "validation_error"
	CodeNotFound   = "not_found"
	CodeStorage    = "storage_error"
	CodeInternal   = "internal_error"
)

// APIErrorDetail represents a single error in the standardized error response.
type APIErrorDetail struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// APIErrorResponse represents the standardized error response body.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

// WriteAPIError writes a standardized error response with the given HTTP status, code, and detail.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	resp := APIErrorResponse{
		Errors: []APIErrorDetail{
			{
				Code:   code,
				Status: strconv.Itoa(httpStatus),
				Detail: detail,
			},
		},
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// writeArchiveError maps an archive error to the API taxonomy. Storage errors
// are logged in full but surfaced without internal detail.
func writeArchiveError(w http.ResponseWriter, op string, err error) {
	switch {
	case archive.IsValidation(err):
		WriteAPIError(w, http.StatusBadRequest, CodeValidation, err.Error())
	case errors.Is(err, archive.ErrNotFound):
		WriteAPIError(w, http.StatusNotFound, CodeNotFound, "no stored item matches the requested identity")
	case archive.IsStorage(err):
		log.Printf("handlers: storage failure during %s: %v", op, err)
		WriteAPIError(w, http.StatusInternalServerError, CodeStorage, "storage failure, the operation is safe to retry")
	default:
		log.Printf("handlers: unexpected error during %s: %v", op, err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
