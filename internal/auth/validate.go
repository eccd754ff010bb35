// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package auth

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
)

// Input limits.
const (
	MaxUsernameLength = 20
	MaxPasswordLength = 20
)

// SignupInput is the raw signup form.
type SignupInput struct {
	Username string `form:"username" json:"username" validate:"required,alphanum,max=20"`
	Password string `form:"password" json:"password" validate:"required,max=20"`
	Email    string `form:"email" json:"email" validate:"required,email"`
}

// LoginInput is the raw login form.
type LoginInput struct {
	Email    string `form:"email" json:"email" validate:"required,email"`
	Password string `form:"password" json:"password" validate:"required,max=20"`
}

// Validator checks signup and login input and reports the first failing field.
type Validator struct {
	v *validator.Validate
}

// NewValidator creates a Validator that reports fields by their form names.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return &Validator{v: v}
}

// ValidateSignup validates signup input.
func (v *Validator) ValidateSignup(in SignupInput) error {
	return v.check(in)
}

// ValidateLogin validates login input.
func (v *Validator) ValidateLogin(in LoginInput) error {
	return v.check(in)
}

func (v *Validator) check(in any) error {
	err := v.v.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return oops.Code(CodeValidation).Wrap(err)
	}

	// Struct field order is declaration order, so the first entry is the
	// first violated field.
	first := fieldErrs[0]
	verr := &ValidationError{Field: first.Field(), Message: describe(first)}
	return oops.Code(CodeValidation).
		With("field", verr.Field).
		With("rule", first.Tag()).
		Wrap(verr)
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%q is not allowed to be empty", field)
	case "alphanum":
		return fmt.Sprintf("%q must only contain alpha-numeric characters", field)
	case "max":
		return fmt.Sprintf("%q length must be less than or equal to %s characters long", field, fe.Param())
	case "email":
		return fmt.Sprintf("%q must be a valid email", field)
	default:
		return fmt.Sprintf("%q failed %s validation", field, fe.Tag())
	}
}
