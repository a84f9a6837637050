package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/factorlab/internal/analysis"
	"github.com/wonny/factorlab/internal/contracts"
	"github.com/wonny/factorlab/internal/csvimport"
)

// maxUploadBytes CSV 업로드 상한 (10MB)
const maxUploadBytes = 10 << 20

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// errorStatus maps domain errors to HTTP status codes
func errorStatus(err error) int {
	var validation contracts.ValidationError
	var rowErr *csvimport.RowError

	switch {
	case errors.Is(err, contracts.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, contracts.ErrInvalidTransition), errors.Is(err, analysis.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, contracts.ErrEmptySeries),
		errors.Is(err, contracts.ErrDuplicateDate),
		errors.Is(err, csvimport.ErrInvalidCSV),
		errors.As(err, &validation),
		errors.As(err, &rowErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondErr writes err with its mapped status; internal errors are not echoed
func respondErr(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		respondError(w, status, "internal server error")
		return
	}
	respondError(w, status, err.Error())
}

// pathID parses the {id} route variable
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, contracts.ValidationError{Field: "id", Message: "must be a positive integer"}
	}
	return id, nil
}

// queryFloat parses an optional float query parameter
func queryFloat(r *http.Request, name string) (*float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, contracts.ValidationError{Field: name, Message: "must be a finite number"}
	}
	return &v, nil
}
