package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/duncanmcclean/guest-entries/internal/server/guestentries"
)

type operation func(ctx context.Context, sub *guestentries.Submission) (*guestentries.Result, error)

func (s *HTTPServer) handle(op operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, ok := s.readSubmission(w, r)
		if !ok {
			return
		}
		s.run(w, r, op, sub)
	}
}

// handleMethodOverride serves HTML forms, which can only POST, through a
// _method field.
func (s *HTTPServer) handleMethodOverride(method string, op operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, ok := s.readSubmission(w, r)
		if !ok {
			return
		}
		if m, _ := sub.String("_method"); !strings.EqualFold(m, method) {
			w.Header().Set("Allow", method)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		s.run(w, r, op, sub)
	}
}

func (s *HTTPServer) readSubmission(w http.ResponseWriter, r *http.Request) (*guestentries.Submission, bool) {
	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	}

	sub, err := parseSubmission(r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.logger.Warn(r.Context(), "bad request body", "error", err)
		if wantsJSON(r) {
			message := http.StatusText(status)
			writeJSON(w, status, responseBody{Status: guestentries.StatusError, Message: &message})
		} else {
			http.Error(w, http.StatusText(status), status)
		}
		return nil, false
	}
	return sub, true
}

func (s *HTTPServer) run(w http.ResponseWriter, r *http.Request, op operation, sub *guestentries.Submission) {
	res, err := op(r.Context(), sub)
	if err != nil {
		writeFailure(w, r, res, err)
		return
	}
	writeSuccess(w, r, res)
}
