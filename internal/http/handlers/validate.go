package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("wall_date", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("2006-01-02", strings.TrimSpace(fl.Field().String()))
		return err == nil
	})
	return v
}

var validationMessages = map[string]string{
	"required":  "is required",
	"wall_date": "must be YYYY-MM-DD",
	"gte":       "must be at least %s",
	"lte":       "must be at most %s",
}

// validationMessage joins every failed rule as "field message".
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := validationMessages[fe.Tag()]
		if !ok {
			msg = "is invalid"
		}
		msg = strings.Replace(msg, "%s", fe.Param(), 1)
		parts = append(parts, fe.Field()+" "+msg)
	}
	return strings.Join(parts, ", ")
}

// valid checks v and writes a 400 when it fails.
func valid(w http.ResponseWriter, v any) bool {
	if err := validate.Struct(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Success: false,
			Status:  "invalid_request",
			Error:   validationMessage(err),
		})
		return false
	}
	return true
}
