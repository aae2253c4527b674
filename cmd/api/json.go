package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"comichub/internal/domain/ads"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

var (
	Validate    *validator.Validate
	formDecoder *schema.Decoder
)

func init() {
	Validate = validator.New(validator.WithRequiredStructEnabled())

	Validate.RegisterValidation("adlink", func(fl validator.FieldLevel) bool {
		return ads.ValidateLink(fl.Field().String()) == nil
	})
	Validate.RegisterValidation("adposition", func(fl validator.FieldLevel) bool {
		_, err := ads.ParsePosition(fl.Field().String())
		return err == nil
	})
	// Empty dates are allowed; on updates they clear the bound.
	Validate.RegisterValidation("addate", func(fl validator.FieldLevel) bool {
		_, err := parseAdDate(fl.Field().String(), false)
		return err == nil
	})

	formDecoder = schema.NewDecoder()
	formDecoder.SetAliasTag("form")
	formDecoder.IgnoreUnknownKeys(true)
}

// parseAdDate accepts RFC 3339 timestamps or plain dates. A plain end date
// covers the whole day.
func parseAdDate(s string, endOfDay bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// readJSON decodes a bounded request body, rejecting unknown fields.
func readJSON(w http.ResponseWriter, r *http.Request, data any) error {
	maxBytes := 1_048_576
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(data)
}

func writeJSONError(w http.ResponseWriter, status int, message string) error {
	type envelope struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Status  int    `json:"status"`
	}

	return writeJSON(w, status, &envelope{
		Success: false,
		Message: message,
		Status:  status,
	})
}

func (app *application) jsonResponse(w http.ResponseWriter, status int, data any) error {
	type envelope struct {
		Data any `json:"data"`
	}
	return writeJSON(w, status, &envelope{Data: data})
}
