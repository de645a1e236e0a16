package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"geranium/pkg/logger"
	"geranium/pkg/model"
	"geranium/pkg/sanitizer"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Details renders the errors as a field to message map for API responses.
func (v ValidationErrors) Details() map[string]any {
	details := make(map[string]any, len(v))
	for _, err := range v {
		details[err.Field] = err.Message
	}
	return details
}

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)

	custom := map[string]validator.Func{
		"ke_phone":     validateKenyanPhone,
		"time_slot":    validateTimeSlot,
		"service_type": validateServiceType,
	}
	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			log.Fatal("Failed to register booking validation", "tag", tag, "error", err)
		}
	}

	log.Info("Booking validator initialized successfully")

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

func validateKenyanPhone(fl validator.FieldLevel) bool {
	return sanitizer.IsValidPhone(fl.Field().String())
}

func validateTimeSlot(fl validator.FieldLevel) bool {
	return model.IsTimeSlot(fl.Field().String())
}

func validateServiceType(fl validator.FieldLevel) bool {
	switch model.ServiceType(fl.Field().String()) {
	case model.ServiceSeats, model.ServiceMattress, model.ServiceBedFrame:
		return true
	}
	return false
}

// Validate checks a normalized booking before it reaches the store.
func (v *BookingValidator) Validate(booking *model.Booking) error {
	if err := v.validate.Struct(booking); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if booking.Date != nil && !model.IsServiceDay(*booking.Date) {
		return ValidationErrors{
			ValidationError{
				Field:   model.FieldDate,
				Message: "we do not operate on Sundays",
			},
		}
	}

	if _, ok := model.UnitPrice(booking.ServiceType, booking.SeatType); !ok {
		return ValidationErrors{
			ValidationError{
				Field:   "seatType",
				Message: fmt.Sprintf("no price for %s %q", booking.ServiceType, booking.SeatType),
			},
		}
	}

	return nil
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		case "ke_phone":
			message = fmt.Sprintf("%s must be a valid Kenyan phone number", err.Field())
		case "time_slot":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), strings.Join(model.TimeSlots, ", "))
		case "service_type":
			message = fmt.Sprintf("%s must be one of: seats, mattress, bedframe", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "gte":
			message = fmt.Sprintf("%s must not be negative", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
