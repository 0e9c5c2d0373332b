// Package validation checks request payloads with go-playground/validator
// and renders failures as per-field messages.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/MarceloPazPezo/Plantilla-PERN/internal/rut"
)

const dateLayout = "2006-01-02"

var (
	namePattern     = regexp.MustCompile(`^[a-zA-ZáéíóúÁÉÍÓÚñÑ\s'-]+$`)
	telefonoPattern = regexp.MustCompile(`^\+?[0-9\s\-()]{7,20}$`)
	allowedDomains  = []string{"@example.cl", "@gmail.com"}
)

// Error maps JSON field names to client-facing messages.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

// Validator wraps a configured validator.Validate. It is safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

// New registers the custom rules and struct-level checks.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	rules := map[string]validator.Func{
		"rut_format":  rutFormat,
		"rut_shape":   rutShape,
		"rut_dv":      rutDV,
		"nombre":      func(fl validator.FieldLevel) bool { return namePattern.MatchString(fl.Field().String()) },
		"telefono":    func(fl validator.FieldLevel) bool { return telefonoPattern.MatchString(fl.Field().String()) },
		"emaildomain": emailDomain,
		"strongpass":  strongPassword,
		"pastdate":    pastDate,
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("validation: register %s: %v", tag, err))
		}
	}
	v.RegisterStructValidation(updateUserRules, UpdateUserRequest{})
	v.RegisterStructValidation(userQueryRules, UserQuery{})
	return &Validator{v: v}
}

// Struct validates s and returns *Error on rule violations.
func (val *Validator) Struct(s any) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &Error{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := out.Fields[field]; seen {
			continue
		}
		out.Fields[field] = message(fe)
	}
	return out
}

// Decode reads one JSON document into dst, rejecting unknown properties,
// and validates the result.
func (val *Validator) Decode(body io.Reader, dst any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "El cuerpo de la solicitud no es un JSON válido."
		if strings.HasPrefix(err.Error(), "json: unknown field ") {
			msg = "No se permiten propiedades adicionales en la solicitud."
		}
		return &Error{Fields: map[string]string{"body": msg}}
	}
	return val.Struct(dst)
}

func rutFormat(fl validator.FieldLevel) bool {
	_, ok := rut.Normalize(fl.Field().String())
	return ok
}

func rutShape(fl validator.FieldLevel) bool {
	n, ok := rut.Normalize(fl.Field().String())
	return ok && rut.ValidShape(n)
}

func rutDV(fl validator.FieldLevel) bool {
	n, ok := rut.Normalize(fl.Field().String())
	return ok && rut.Validate(n)
}

func emailDomain(fl validator.FieldLevel) bool {
	email := strings.ToLower(strings.TrimSpace(fl.Field().String()))
	for _, d := range allowedDomains {
		if strings.HasSuffix(email, d) {
			return true
		}
	}
	return false
}

// strongPassword requires a lower-case letter, an upper-case letter and a
// digit, with no whitespace.
func strongPassword(fl validator.FieldLevel) bool {
	var lower, upper, digit bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsSpace(r):
			return false
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return lower && upper && digit
}

func pastDate(fl validator.FieldLevel) bool {
	d, err := time.Parse(dateLayout, fl.Field().String())
	return err == nil && d.Before(time.Now())
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("El campo '%s' es obligatorio.", field)
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("Debes proporcionar al menos %s elemento(s) en '%s'.", fe.Param(), field)
		}
		return fmt.Sprintf("El campo '%s' debe tener al menos %s caracteres.", field, fe.Param())
	case "max":
		return fmt.Sprintf("El campo '%s' debe tener como máximo %s caracteres.", field, fe.Param())
	case "email":
		return "El formato del correo electrónico es inválido."
	case "emaildomain":
		return "El correo electrónico debe ser de un dominio permitido (ej. @example.cl, @gmail.com)"
	case "rut_format":
		return "El formato inicial del RUT es inválido o no pudo ser procesado."
	case "rut_shape":
		return "El RUT normalizado no cumple el formato esperado (ej: XXXXXXXXK)."
	case "rut_dv":
		return "El dígito verificador del RUT es incorrecto."
	case "nombre":
		return fmt.Sprintf("'%s' solo puede contener letras, espacios, apóstrofes o guiones.", field)
	case "strongpass":
		return "La contraseña debe tener al menos 8 caracteres, incluyendo una mayúscula, una minúscula y un número, sin espacios."
	case "telefono":
		return "El teléfono no tiene un formato válido. Debe contener solo números, espacios, paréntesis y guiones."
	case "datetime":
		return "La fecha de nacimiento debe estar en formato ISO 8601 (YYYY-MM-DD)."
	case "pastdate":
		return "La fecha de nacimiento no puede ser futura."
	case "atleastone":
		return fe.Param()
	case "password_with_new":
		return "Si actualizas la contraseña, debes proporcionar tu contraseña actual."
	}
	return fmt.Sprintf("El campo '%s' es inválido.", field)
}
