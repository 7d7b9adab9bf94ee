package domain

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// ClockLayout is the wall-clock layout used by schedules.
const ClockLayout = "15:04"

var validate = newValidator()

type enumValue interface {
	Valid() bool
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("enum", func(fl validator.FieldLevel) bool {
		e, ok := fl.Field().Interface().(enumValue)
		return ok && e.Valid()
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(ClockLayout, fl.Field().String())
		return err == nil
	})
	return v
}
