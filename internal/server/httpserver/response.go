package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/duncanmcclean/guest-entries/internal/common"
	"github.com/duncanmcclean/guest-entries/internal/server/guestentries"
)

// ErrorsCookie carries the errors of a failed submission to the page the
// visitor is redirected to.
const ErrorsCookie = "guest_entries_errors"

type responseBody struct {
	Status  string              `json:"status"`
	Message *string             `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// wantsJSON mirrors the usual Accept negotiation of form backends: any
// JSON media type in Accept means the client wants JSON back.
func wantsJSON(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if strings.HasSuffix(mediaType, "/json") || strings.HasSuffix(mediaType, "+json") {
			return true
		}
	}
	return false
}

// statusFor maps an operation error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrTampered), errors.Is(err, common.ErrNotAllowlisted):
		return http.StatusForbidden
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrValidation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeSuccess(w http.ResponseWriter, r *http.Request, res *guestentries.Result) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, responseBody{Status: guestentries.StatusSuccess})
		return
	}

	target := ""
	if res != nil && res.Envelope != nil {
		target = res.Envelope.Redirect
	}
	http.Redirect(w, r, redirectTarget(r, target), http.StatusFound)
}

func writeFailure(w http.ResponseWriter, r *http.Request, res *guestentries.Result, err error) {
	status := statusFor(err)
	message := guestentries.ErrorMessage(err)
	var fieldErrors map[string][]string
	if res != nil {
		if res.Message != "" {
			message = res.Message
		}
		fieldErrors = res.Errors
	}

	if wantsJSON(r) {
		writeJSON(w, status, responseBody{Status: guestentries.StatusError, Message: &message, Errors: fieldErrors})
		return
	}

	if status != http.StatusUnprocessableEntity {
		http.Error(w, message, status)
		return
	}

	target := ""
	if res != nil && res.Envelope != nil {
		target = res.Envelope.ErrorRedirect
	}
	setErrorsCookie(w, responseBody{Status: guestentries.StatusError, Message: &message, Errors: fieldErrors})
	http.Redirect(w, r, redirectTarget(r, target), http.StatusFound)
}

// redirectTarget is target, else the referer, else the site root.
func redirectTarget(r *http.Request, target string) string {
	if target != "" {
		return target
	}
	if ref := r.Referer(); ref != "" {
		return ref
	}
	return "/"
}

func setErrorsCookie(w http.ResponseWriter, body responseBody) {
	raw, err := json.Marshal(body)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     ErrorsCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
