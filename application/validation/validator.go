// Package validation checks host configuration documents against the
// generated configuration schema and the semantic rules of HostConfig.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
	"github.com/reglet-dev/dlhost/application/schema"
	"github.com/reglet-dev/dlhost/domain/entities"
	"github.com/reglet-dev/dlhost/domain/ports"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "dlhost-config.json"

// validate is a package-level singleton; building a validator is expensive.
var validate = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their YAML names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d >= 0
	})
	_ = v.RegisterValidation("glob", func(fl validator.FieldLevel) bool {
		return doublestar.ValidatePattern(fl.Field().String())
	})

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		c, ok := sl.Current().Interface().(entities.ExchangeConfig)
		if ok && len(c.Input) > c.Capacity {
			sl.ReportError(c.Capacity, "capacity", "Capacity", "fits_input", fmt.Sprint(len(c.Input)))
		}
		if ok && c.Capacity > c.Limit() {
			sl.ReportError(c.Capacity, "capacity", "Capacity", "within_limit", fmt.Sprint(c.Limit()))
		}
	}, entities.ExchangeConfig{})

	return v
}

// ConfigValidator implements ports.ConfigValidator.
type ConfigValidator struct {
	schema *jsonschema.Schema
}

var _ ports.ConfigValidator = (*ConfigValidator)(nil)

// NewConfigValidator compiles the configuration schema.
func NewConfigValidator() (*ConfigValidator, error) {
	raw, err := schema.GenerateSchema(&entities.HostConfig{})
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to add configuration schema: %w", err)
	}
	sch, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile configuration schema: %w", err)
	}
	return &ConfigValidator{schema: sch}, nil
}

// ValidateDocument checks doc against the configuration schema. A non-nil
// error means the document could not be checked at all.
func (v *ConfigValidator) ValidateDocument(doc any) (*entities.ValidationResult, error) {
	result := &entities.ValidationResult{Valid: true}

	// Round-trip through JSON so the validator sees JSON types only.
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare validation object: %w", err)
	}
	var obj any
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil, fmt.Errorf("failed to prepare validation object: %w", err)
	}

	if err := v.schema.Validate(obj); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return nil, err
		}
		collectLeaves(ve, result)
		result.Valid = false
	}
	return result, nil
}

func collectLeaves(ve *jsonschema.ValidationError, result *entities.ValidationResult) {
	if len(ve.Causes) == 0 {
		result.Errors = append(result.Errors, entities.ValidationError{
			Field:   pointerToField(ve.InstanceLocation),
			Message: ve.Message,
		})
		return
	}
	for _, c := range ve.Causes {
		collectLeaves(c, result)
	}
}

func pointerToField(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return "(root)"
	}
	return strings.ReplaceAll(ptr, "/", ".")
}

// Validate checks the struct rules of cfg.
func (v *ConfigValidator) Validate(cfg *entities.HostConfig) *entities.ValidationResult {
	result := &entities.ValidationResult{Valid: true}
	if cfg == nil {
		result.Valid = false
		result.Errors = append(result.Errors, entities.ValidationError{Field: "(root)", Message: "missing configuration"})
		return result
	}

	err := validate.Struct(cfg)
	if err == nil {
		return result
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		result.Valid = false
		result.Errors = append(result.Errors, entities.ValidationError{Field: "(root)", Message: err.Error()})
		return result
	}
	for _, fe := range fieldErrs {
		result.Errors = append(result.Errors, entities.ValidationError{
			Field:   fieldPath(fe.Namespace()),
			Message: describe(fe),
		})
	}
	result.Valid = false
	return result
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	_, rest, ok := strings.Cut(ns, ".")
	if !ok {
		return ns
	}
	return rest
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "duration":
		return fmt.Sprintf("%q is not a non-negative duration", fe.Value())
	case "glob":
		return fmt.Sprintf("%q is not a valid glob pattern", fe.Value())
	case "hostname_port":
		return fmt.Sprintf("%q is not a host:port address", fe.Value())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "within_limit":
		return fmt.Sprintf("must not exceed the %s byte limit", fe.Param())
	case "fits_input":
		return fmt.Sprintf("must hold the %s byte input", fe.Param())
	default:
		return fmt.Sprintf("failed the %s rule", fe.Tag())
	}
}
