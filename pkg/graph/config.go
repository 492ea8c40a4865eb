package graph

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dukex/sfcflow/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
	})

	return v
}

type waitFields struct {
	DurationSeconds *float64 `mapstructure:"duration_seconds" validate:"required,gte=0,lte=9223372036"`
}

type predicateFields struct {
	Address  string `mapstructure:"address"  validate:"required"`
	Operator string `mapstructure:"operator" validate:"required,oneof=eq ne gt gte lt lte"`
	Value    any    `mapstructure:"value"`
}

type conditionFields struct {
	Predicate *predicateFields `mapstructure:"predicate" validate:"required"`
}

type setValueFields struct {
	TargetAddress   string   `mapstructure:"target_address"   validate:"required"`
	ValueType       string   `mapstructure:"value_type"       validate:"required,oneof=numeric boolean"`
	StartValue      any      `mapstructure:"start_value"`
	EndValue        any      `mapstructure:"end_value"`
	DurationSeconds *float64 `mapstructure:"duration_seconds" validate:"required,gte=0,lte=9223372036"`
}

// decodeStep turns a step definition into its executable variant.
func decodeStep(definition *models.StepDefinition) (*Step, error) {
	step := &Step{ID: definition.ID, Name: definition.Name, Kind: definition.Kind}

	switch definition.Kind {
	case models.StepKindStart, models.StepKindEnd:
		return step, nil
	case models.StepKindWait:
		var fields waitFields
		if err := decodeConfig(definition.Config, &fields); err != nil {
			return nil, err
		}

		step.Wait = &models.WaitConfig{DurationSeconds: *fields.DurationSeconds}
	case models.StepKindCondition:
		var fields conditionFields
		if err := decodeConfig(definition.Config, &fields); err != nil {
			return nil, err
		}

		predicate, err := buildPredicate(fields.Predicate)
		if err != nil {
			return nil, err
		}

		step.Condition = &models.ConditionConfig{Predicate: predicate}
	case models.StepKindSetValue:
		var fields setValueFields
		if err := decodeConfig(definition.Config, &fields); err != nil {
			return nil, err
		}

		config, err := buildSetValue(fields)
		if err != nil {
			return nil, err
		}

		step.SetValue = config
	default:
		return nil, fmt.Errorf("unknown step kind %q", definition.Kind)
	}

	return step, nil
}

func decodeConfig(config map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}

	if config == nil {
		config = map[string]any{}
	}

	if err := decoder.Decode(config); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := validate.Struct(target); err != nil {
		return describeValidation(err)
	}

	return nil
}

func describeValidation(err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fieldErr := range fieldErrors {
		if fieldErr.Param() != "" {
			messages = append(messages, fmt.Sprintf("field '%s' failed on '%s=%s'", fieldErr.Field(), fieldErr.Tag(), fieldErr.Param()))
		} else {
			messages = append(messages, fmt.Sprintf("field '%s' failed on '%s'", fieldErr.Field(), fieldErr.Tag()))
		}
	}

	return errors.New(strings.Join(messages, ", "))
}

func buildPredicate(fields *predicateFields) (models.Predicate, error) {
	predicate := models.Predicate{Address: fields.Address, Operator: models.Operator(fields.Operator)}

	switch value := fields.Value.(type) {
	case nil:
		return predicate, errors.New("field 'value' is required")
	case bool:
		predicate.Value = value
	default:
		if b, ok := booleanLiteral(value); ok {
			predicate.Value = b

			break
		}

		number, err := cast.ToFloat64E(value)
		if err != nil {
			return predicate, fmt.Errorf("field 'value' must be a number or a boolean: %w", err)
		}

		predicate.Value = number
	}

	if _, ok := predicate.Value.(bool); ok {
		if predicate.Operator != models.OperatorEqual && predicate.Operator != models.OperatorNotEqual {
			return predicate, fmt.Errorf("operator '%s' cannot compare boolean values", predicate.Operator)
		}
	}

	return predicate, nil
}

func booleanLiteral(value any) (bool, bool) {
	s, ok := value.(string)
	if !ok {
		return false, false
	}

	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

func buildSetValue(fields setValueFields) (*models.SetValueConfig, error) {
	config := &models.SetValueConfig{
		TargetAddress:   fields.TargetAddress,
		ValueType:       models.ValueType(fields.ValueType),
		DurationSeconds: *fields.DurationSeconds,
	}

	var err error

	config.StartValue, err = coerceValue(config.ValueType, "start_value", fields.StartValue)
	if err != nil {
		return nil, err
	}

	config.EndValue, err = coerceValue(config.ValueType, "end_value", fields.EndValue)
	if err != nil {
		return nil, err
	}

	return config, nil
}

func coerceValue(valueType models.ValueType, field string, value any) (any, error) {
	if value == nil {
		return nil, fmt.Errorf("field '%s' is required", field)
	}

	switch valueType {
	case models.ValueTypeBoolean:
		b, err := cast.ToBoolE(value)
		if err != nil {
			return nil, fmt.Errorf("field '%s' must be a boolean: %w", field, err)
		}

		return b, nil
	default:
		number, err := cast.ToFloat64E(value)
		if err != nil {
			return nil, fmt.Errorf("field '%s' must be a number: %w", field, err)
		}

		return number, nil
	}
}
