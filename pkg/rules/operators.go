package rules

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// Operator is a comparison operator in a declarative condition.
type Operator string

const (
	OperatorEqual        Operator = "=="
	OperatorNotEqual     Operator = "!="
	OperatorLessThan     Operator = "<"
	OperatorGreaterThan  Operator = ">"
	OperatorLessEqual    Operator = "<="
	OperatorGreaterEqual Operator = ">="
	OperatorIn           Operator = "in"
	OperatorContains     Operator = "contains"
	OperatorMatches      Operator = "matches" // Regex match
)

// knownOperator reports whether op is one of the supported operators.
func knownOperator(op Operator) bool {
	switch op {
	case OperatorEqual, OperatorNotEqual,
		OperatorLessThan, OperatorGreaterThan,
		OperatorLessEqual, OperatorGreaterEqual,
		OperatorIn, OperatorContains, OperatorMatches:
		return true
	}
	return false
}

// evaluateOperator evaluates an operator comparison between actual and
// expected values.
func evaluateOperator(op Operator, actual, expected any) (bool, error) {
	switch op {
	case OperatorEqual:
		return evaluateEqual(actual, expected)

	case OperatorNotEqual:
		equal, err := evaluateEqual(actual, expected)
		return !equal, err

	case OperatorLessThan:
		a, e, err := toNumeric(actual, expected)
		return a < e, err

	case OperatorGreaterThan:
		a, e, err := toNumeric(actual, expected)
		return a > e, err

	case OperatorLessEqual:
		a, e, err := toNumeric(actual, expected)
		return a <= e, err

	case OperatorGreaterEqual:
		a, e, err := toNumeric(actual, expected)
		return a >= e, err

	case OperatorIn:
		return evaluateIn(actual, expected)

	case OperatorContains:
		return evaluateContains(actual, expected)

	case OperatorMatches:
		return evaluateMatches(actual, expected)

	default:
		return false, fmt.Errorf("unknown operator: %q", op)
	}
}

// evaluateEqual checks if two values are equal. Numeric values compare
// numerically so a YAML int matches a Go float64.
func evaluateEqual(actual, expected any) (bool, error) {
	if actual == nil && expected == nil {
		return true, nil
	}
	if actual == nil || expected == nil {
		return false, nil
	}

	actualNum, actualErr := convertToFloat64(actual)
	expectedNum, expectedErr := convertToFloat64(expected)
	if actualErr == nil && expectedErr == nil {
		return actualNum == expectedNum, nil
	}

	return reflect.DeepEqual(actual, expected), nil
}

// evaluateIn checks if actual is in the expected list.
func evaluateIn(actual, expected any) (bool, error) {
	expectedVal := reflect.ValueOf(expected)
	if expectedVal.Kind() != reflect.Slice && expectedVal.Kind() != reflect.Array {
		return false, fmt.Errorf("in operator requires slice or array for expected, got %s", expectedVal.Kind())
	}

	for i := 0; i < expectedVal.Len(); i++ {
		equal, err := evaluateEqual(actual, expectedVal.Index(i).Interface())
		if err != nil {
			return false, err
		}
		if equal {
			return true, nil
		}
	}
	return false, nil
}

// evaluateContains checks if actual contains expected (substring or
// element).
func evaluateContains(actual, expected any) (bool, error) {
	if actualStr, ok := actual.(string); ok {
		expectedStr, ok := expected.(string)
		if !ok {
			return false, fmt.Errorf("contains operator requires string for expected, got %T", expected)
		}
		return strings.Contains(actualStr, expectedStr), nil
	}

	actualVal := reflect.ValueOf(actual)
	if actualVal.Kind() != reflect.Slice && actualVal.Kind() != reflect.Array {
		return false, fmt.Errorf("contains operator requires string, slice or array for actual, got %T", actual)
	}
	for i := 0; i < actualVal.Len(); i++ {
		equal, err := evaluateEqual(actualVal.Index(i).Interface(), expected)
		if err != nil {
			return false, err
		}
		if equal {
			return true, nil
		}
	}
	return false, nil
}

// evaluateMatches checks if actual matches the expected regex pattern.
func evaluateMatches(actual, expected any) (bool, error) {
	actualStr, ok := actual.(string)
	if !ok {
		return false, fmt.Errorf("matches operator requires string for actual, got %T", actual)
	}
	pattern, ok := expected.(string)
	if !ok {
		return false, fmt.Errorf("matches operator requires string pattern for expected, got %T", expected)
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
	}
	return re.MatchString(actualStr), nil
}

// toNumeric converts both values to float64 for numeric comparison.
func toNumeric(actual, expected any) (float64, float64, error) {
	actualNum, err := convertToFloat64(actual)
	if err != nil {
		return 0, 0, fmt.Errorf("cannot convert actual value to number: %w", err)
	}

	expectedNum, err := convertToFloat64(expected)
	if err != nil {
		return 0, 0, fmt.Errorf("cannot convert expected value to number: %w", err)
	}

	return actualNum, expectedNum, nil
}

// convertToFloat64 converts a value to float64.
func convertToFloat64(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int8:
		return float64(val), nil
	case int16:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint:
		return float64(val), nil
	case uint8:
		return float64(val), nil
	case uint16:
		return float64(val), nil
	case uint32:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", v)
	}
}
