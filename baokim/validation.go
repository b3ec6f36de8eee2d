package baokim

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator. Field errors are reported with
// their JSON names.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// ValidateRequest checks v against its validate tags and returns an
// ErrValidation describing the first failing field.
func ValidateRequest(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return NewValidationError("invalid request", err)
	}

	fe := fieldErrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("Missing required field: %s", fe.Field())
	case "oneof":
		msg = fmt.Sprintf("Invalid %s. Must be one of: %s", fe.Field(), fe.Param())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "gt", "gte", "min":
		msg = fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param())
	default:
		msg = fmt.Sprintf("Invalid field: %s (%s)", fe.Field(), fe.Tag())
	}
	return NewValidationError(msg, err)
}

// CustomerInfo describes the paying customer.
type CustomerInfo struct {
	Code    string `json:"code,omitempty"`
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required"`
	Address string `json:"address"`
	Gender  int    `json:"gender"`
}

// Item is one order line.
type Item struct {
	Code     string `json:"code" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Amount   int64  `json:"amount"`
	Quantity int    `json:"quantity"`
	Link     string `json:"link"`
}

// BuildCustomerInfo returns customer info with gender defaulting to 1.
func BuildCustomerInfo(name, email, phone, address string, gender int) CustomerInfo {
	if gender == 0 {
		gender = 1
	}
	return CustomerInfo{Name: name, Email: email, Phone: phone, Address: address, Gender: gender}
}

// BuildItem returns an order line with quantity defaulting to 1.
func BuildItem(code, name string, amount int64, quantity int, link string) Item {
	if quantity <= 0 {
		quantity = 1
	}
	return Item{Code: code, Name: name, Amount: amount, Quantity: quantity, Link: link}
}
