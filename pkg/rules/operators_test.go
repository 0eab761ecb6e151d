package rules

import "testing"

func TestEvaluateOperator(t *testing.T) {
	tests := []struct {
		name     string
		op       Operator
		actual   any
		expected any
		want     bool
		wantErr  bool
	}{
		{name: "equal strings", op: OperatorEqual, actual: "CN", expected: "CN", want: true},
		{name: "equal mixed numerics", op: OperatorEqual, actual: 10000, expected: 10000.0, want: true},
		{name: "equal nils", op: OperatorEqual, actual: nil, expected: nil, want: true},
		{name: "equal nil vs value", op: OperatorEqual, actual: nil, expected: "x", want: false},
		{name: "not equal", op: OperatorNotEqual, actual: "CN", expected: "US", want: true},
		{name: "greater than", op: OperatorGreaterThan, actual: 12500.0, expected: 10000, want: true},
		{name: "greater than false", op: OperatorGreaterThan, actual: 9999, expected: 10000, want: false},
		{name: "greater equal boundary", op: OperatorGreaterEqual, actual: 10000, expected: 10000, want: true},
		{name: "less than", op: OperatorLessThan, actual: 5, expected: 10, want: true},
		{name: "less equal", op: OperatorLessEqual, actual: 10, expected: 10, want: true},
		{name: "numeric op on string", op: OperatorGreaterThan, actual: "abc", expected: 10, wantErr: true},
		{name: "in hit", op: OperatorIn, actual: "RU", expected: []any{"CN", "RU", "NG"}, want: true},
		{name: "in miss", op: OperatorIn, actual: "DE", expected: []any{"CN", "RU", "NG"}, want: false},
		{name: "in numeric coercion", op: OperatorIn, actual: 3, expected: []any{1.0, 2.0, 3.0}, want: true},
		{name: "in on scalar", op: OperatorIn, actual: "x", expected: "xyz", wantErr: true},
		{name: "contains substring", op: OperatorContains, actual: "wire transfer", expected: "transfer", want: true},
		{name: "contains element", op: OperatorContains, actual: []any{"a", "b"}, expected: "b", want: true},
		{name: "matches", op: OperatorMatches, actual: "TX-12345", expected: `^TX-\d+$`, want: true},
		{name: "matches bad pattern", op: OperatorMatches, actual: "x", expected: "(", wantErr: true},
		{name: "unknown operator", op: Operator("~="), actual: 1, expected: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evaluateOperator(tt.op, tt.actual, tt.expected)
			if (err != nil) != tt.wantErr {
				t.Fatalf("evaluateOperator() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("evaluateOperator() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKnownOperator(t *testing.T) {
	for _, op := range []Operator{
		OperatorEqual, OperatorNotEqual, OperatorLessThan, OperatorGreaterThan,
		OperatorLessEqual, OperatorGreaterEqual, OperatorIn, OperatorContains, OperatorMatches,
	} {
		if !knownOperator(op) {
			t.Errorf("knownOperator(%q) = false, want true", op)
		}
	}
	if knownOperator(Operator("like")) {
		t.Error(`knownOperator("like") = true, want false`)
	}
}
