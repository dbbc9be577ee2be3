package newebpay

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kevin07696/newebpay-service/internal/domain"
)

const maxJSONBodyBytes = 1_048_576 // 1MB

// Validate checks request bodies. Errors name fields by their JSON key.
var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// readJSON decodes the body into data, rejecting unknown fields and trailing content
func readJSON(w http.ResponseWriter, r *http.Request, data any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(data); err != nil {
		return err
	}
	if decoder.More() {
		return errors.New("body must contain a single JSON object")
	}
	return nil
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func writeJSONError(w http.ResponseWriter, status int, code domain.ErrorCode, message string) error {
	return writeJSON(w, status, &errorEnvelope{
		Success: false,
		Code:    string(code),
		Message: message,
		Status:  status,
	})
}

// writeDomainError maps err onto its HTTP status. Internal failures are not echoed back.
func writeDomainError(w http.ResponseWriter, err error) error {
	status := domain.HTTPStatus(err)
	code := domain.GetErrorCode(err)
	message := domain.ErrorMessage(err)
	if status == http.StatusInternalServerError {
		code = domain.ErrorCodeInternalError
		message = domain.ErrInternalError.Message
	}
	return writeJSONError(w, status, code, message)
}

func jsonResponse(w http.ResponseWriter, status int, data any) error {
	type envelope struct {
		Data any `json:"data"`
	}
	return writeJSON(w, status, &envelope{Data: data})
}

// validationMessage flattens validator errors into "field: rule" pairs
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+": "+fe.Tag())
	}
	return strings.Join(parts, ", ")
}
