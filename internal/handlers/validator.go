package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"uk.co.dudmesh.todo/internal/model"
)

// Validator checks bound request bodies against their validate tags and
// reports failures by json field name.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v}
}

func (v *Validator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return model.ValidationError("invalid request", err)
	}

	problems := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		if fe.Tag() == "required" {
			problems = append(problems, fmt.Sprintf("%s is required", fe.Field()))
		} else {
			problems = append(problems, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return model.ValidationError(strings.Join(problems, ", "), nil)
}
