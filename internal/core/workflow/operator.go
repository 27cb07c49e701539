package workflow

// ValueType is the type of comparison value an operator expects
type ValueType string

const (
	ValueNone    ValueType = "none"
	ValueAny     ValueType = "any"
	ValueNumeric ValueType = "numeric"
	ValueString  ValueType = "string"
	ValueBoolean ValueType = "boolean"
)

// Operator is the comparison a condition applies to its field
type Operator string

const (
	OpEquals         Operator = "equals"
	OpNotEquals      Operator = "not_equals"
	OpGreaterThan    Operator = "greater_than"
	OpGreaterOrEqual Operator = "greater_or_equal"
	OpLessThan       Operator = "less_than"
	OpLessOrEqual    Operator = "less_or_equal"
	OpContains       Operator = "contains"
	OpStartsWith     Operator = "starts_with"
	OpEndsWith       Operator = "ends_with"
	OpIsNull         Operator = "is_null"
	OpIsNotNull      Operator = "is_not_null"
	OpIsTrue         Operator = "is_true"
	OpIsFalse        Operator = "is_false"
	OpChanged        Operator = "changed"
)

type operatorInfo struct {
	label     string
	valueType ValueType
}

var operatorOrder = []Operator{
	OpEquals, OpNotEquals,
	OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual,
	OpContains, OpStartsWith, OpEndsWith,
	OpIsNull, OpIsNotNull, OpIsTrue, OpIsFalse,
	OpChanged,
}

var operatorInfos = map[Operator]operatorInfo{
	OpEquals:         {label: "Equals", valueType: ValueAny},
	OpNotEquals:      {label: "Does not equal", valueType: ValueAny},
	OpGreaterThan:    {label: "Greater than", valueType: ValueNumeric},
	OpGreaterOrEqual: {label: "Greater than or equal to", valueType: ValueNumeric},
	OpLessThan:       {label: "Less than", valueType: ValueNumeric},
	OpLessOrEqual:    {label: "Less than or equal to", valueType: ValueNumeric},
	OpContains:       {label: "Contains", valueType: ValueString},
	OpStartsWith:     {label: "Starts with", valueType: ValueString},
	OpEndsWith:       {label: "Ends with", valueType: ValueString},
	OpIsNull:         {label: "Is empty", valueType: ValueNone},
	OpIsNotNull:      {label: "Is not empty", valueType: ValueNone},
	OpIsTrue:         {label: "Is true", valueType: ValueNone},
	OpIsFalse:        {label: "Is false", valueType: ValueNone},
	OpChanged:        {label: "Has changed", valueType: ValueNone},
}

// Operators returns every operator in declaration order
func Operators() []Operator {
	out := make([]Operator, len(operatorOrder))
	copy(out, operatorOrder)
	return out
}

func (o Operator) Valid() bool {
	_, ok := operatorInfos[o]
	return ok
}

func (o Operator) Label() string {
	if info, ok := operatorInfos[o]; ok {
		return info.label
	}
	return string(o)
}

// ValueType returns the comparison value type the operator accepts
func (o Operator) ValueType() ValueType {
	if info, ok := operatorInfos[o]; ok {
		return info.valueType
	}
	return ValueNone
}

// RequiresValue reports whether conditions using o must carry a comparison value
func (o Operator) RequiresValue() bool {
	return o.ValueType() != ValueNone
}
