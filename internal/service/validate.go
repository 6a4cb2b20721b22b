package service

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/alexanderramin/wbs/internal/domain"
	playgroundvalidator "github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validate      *playgroundvalidator.Validate
)

// inputValidator reports field names by their json tag and knows the
// domain enums.
func inputValidator() *playgroundvalidator.Validate {
	validatorOnce.Do(func() {
		v := playgroundvalidator.New(playgroundvalidator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		mustRegister(v, "relation_type", validateRelationType)
		mustRegister(v, "access_level", validateAccessLevel)
		mustRegister(v, "notblank", validateNotBlank)
		validate = v
	})
	return validate
}

func mustRegister(v *playgroundvalidator.Validate, tag string, fn playgroundvalidator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic("registering validation " + tag + ": " + err.Error())
	}
}

func validateRelationType(fl playgroundvalidator.FieldLevel) bool {
	_, err := domain.ParseRelationType(fl.Field().String())
	return err == nil
}

func validateAccessLevel(fl playgroundvalidator.FieldLevel) bool {
	return domain.AccessLevel(fl.Field().String()).Valid()
}

func validateNotBlank(fl playgroundvalidator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// validateInput runs struct validation and converts failures into a
// domain ValidationError listing the offending fields.
func validateInput(in any) error {
	err := inputValidator().Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs playgroundvalidator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return domain.NewValidationError("%v", err)
	}
	fields := make([]string, 0, len(fieldErrs))
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := fieldPath(fe)
		fields = append(fields, name)
		details[name] = fe.Tag()
	}
	return domain.NewValidationError("invalid fields: %s", strings.Join(fields, ", ")).
		WithMeta("fields", details)
}

// fieldPath drops the struct name prefix: CreateItemInput.predecessors[0].relation_type
// becomes predecessors[0].relation_type.
func fieldPath(fe playgroundvalidator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}
