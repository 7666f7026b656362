package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"rezerv/pkg/logger"
	"rezerv/pkg/model"
)

// Room names are shared, URL-embedded identifiers; the character set is
// restricted accordingly.
var roomNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_ -]+$`)

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

// BookingValidator centralizes every input check the engine performs. All
// checks run before any store access; a failed validation never mutates.
type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validator.New()

	if err := v.RegisterValidation("room_name", validateRoomName); err != nil {
		log.Fatal("Failed to register 'room_name' validator", "error", err)
	}

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

func validateRoomName(fl validator.FieldLevel) bool {
	return roomNameRegex.MatchString(fl.Field().String())
}

func (v *BookingValidator) ValidateBooking(booking *model.Booking) error {
	if err := v.structErrors(booking); err != nil {
		return err
	}
	if !booking.EndTime.After(booking.StartTime) {
		return ValidationErrors{{
			Field:   "EndTime",
			Message: "end_time must be after start_time",
		}}
	}
	return nil
}

func (v *BookingValidator) ValidateAllocate(req *model.AllocateRequest) error {
	return v.structErrors(req)
}

func (v *BookingValidator) ValidateReservation(req *model.CreateReservationRequest) error {
	return v.structErrors(req)
}

func (v *BookingValidator) structErrors(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return v.translateValidationErrors(validationErrs)
	}
	return err
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
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), err.Param())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		case "timezone":
			message = fmt.Sprintf("%s must be a valid IANA timezone identifier", err.Field())
		case "alphanum":
			message = fmt.Sprintf("%s may only contain letters and digits", err.Field())
		case "room_name":
			message = fmt.Sprintf("allowed characters for %s are: a-z, A-Z, 0-9, -, _, and space", err.Field())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid ObjectID", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
