package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/services"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// writeError maps a service error onto its status and client-safe message.
// Internal causes are logged, never returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	se := services.AsServiceError(err)
	status := se.HTTPStatus()
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		slog.InfoContext(r.Context(), "Request rejected",
			"method", r.Method, "path", r.URL.Path, "status", status, "message", se.Message)
	}
	writeMessage(w, status, se.Message)
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return services.NewInvalidError("Invalid payload")
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return services.NewInvalidError("Invalid payload")
	}
	switch verrs[0].Tag() {
	case "required":
		return services.NewInvalidError("Missing fields")
	case "email":
		return services.NewInvalidError("Invalid email")
	default:
		return services.NewInvalidError("Invalid " + verrs[0].Field())
	}
}
