package metadata

// Operator represents a primitive comparison operator.
type Operator string

const (
	// OpEqual represents the equality operator.
	OpEqual Operator = "eq"
	// OpNotEqual represents the inequality operator.
	OpNotEqual Operator = "ne"
	// OpGreaterThan represents the greater than operator.
	OpGreaterThan Operator = "gt"
	// OpGreaterEqual represents the greater than or equal operator.
	OpGreaterEqual Operator = "gte"
	// OpLessThan represents the less than operator.
	OpLessThan Operator = "lt"
	// OpLessEqual represents the less than or equal operator.
	OpLessEqual Operator = "lte"
)

// SetOperator represents a set membership operator.
type SetOperator string

const (
	// OpIn matches records whose value equals any of the listed values.
	OpIn SetOperator = "in"
	// OpNotIn matches records whose value equals none of the listed values.
	OpNotIn SetOperator = "nin"
)

// DocumentOperator represents a full-text comparison operator.
type DocumentOperator string

const (
	// OpContains matches records whose document contains the substring.
	OpContains DocumentOperator = "contains"
	// OpNotContains matches records whose document does not contain the substring.
	OpNotContains DocumentOperator = "not_contains"
)

// BooleanOperator combines the results of child expressions.
type BooleanOperator string

const (
	// BoolAnd intersects child results.
	BoolAnd BooleanOperator = "and"
	// BoolOr unions child results.
	BoolOr BooleanOperator = "or"
)

// Where is a node in a boolean filter expression tree.
//
// Concrete node types are Junction, Comparison, SetComparison and
// DocumentComparison. Tree depth is caller-controlled; evaluation must not
// assume a fixed recursion limit.
type Where interface {
	isWhere()
}

// Junction combines child expressions with a boolean operator.
type Junction struct {
	Op       BooleanOperator
	Children []Where
}

// Comparison compares a metadata key against a single typed value.
type Comparison struct {
	Key   string
	Op    Operator
	Value Value
}

// SetComparison compares a metadata key against a list of typed values.
// All values must share one Kind.
type SetComparison struct {
	Key    string
	Op     SetOperator
	Values []Value
}

// DocumentComparison matches records by document substring.
type DocumentComparison struct {
	Op      DocumentOperator
	Pattern string
}

func (*Junction) isWhere()           {}
func (*Comparison) isWhere()         {}
func (*SetComparison) isWhere()      {}
func (*DocumentComparison) isWhere() {}

// And combines expressions so that all must match.
func And(children ...Where) Where {
	return &Junction{Op: BoolAnd, Children: children}
}

// Or combines expressions so that at least one must match.
func Or(children ...Where) Where {
	return &Junction{Op: BoolOr, Children: children}
}

// Eq matches records where key equals value.
func Eq(key string, value Value) Where {
	return &Comparison{Key: key, Op: OpEqual, Value: value}
}

// Ne matches records where key does not equal value.
func Ne(key string, value Value) Where {
	return &Comparison{Key: key, Op: OpNotEqual, Value: value}
}

// Gt matches records where key is greater than value.
func Gt(key string, value Value) Where {
	return &Comparison{Key: key, Op: OpGreaterThan, Value: value}
}

// Gte matches records where key is greater than or equal to value.
func Gte(key string, value Value) Where {
	return &Comparison{Key: key, Op: OpGreaterEqual, Value: value}
}

// Lt matches records where key is less than value.
func Lt(key string, value Value) Where {
	return &Comparison{Key: key, Op: OpLessThan, Value: value}
}

// Lte matches records where key is less than or equal to value.
func Lte(key string, value Value) Where {
	return &Comparison{Key: key, Op: OpLessEqual, Value: value}
}

// In matches records where key equals any of the given values.
func In(key string, values ...Value) Where {
	return &SetComparison{Key: key, Op: OpIn, Values: values}
}

// NotIn matches records where key equals none of the given values.
func NotIn(key string, values ...Value) Where {
	return &SetComparison{Key: key, Op: OpNotIn, Values: values}
}

// Contains matches records whose document contains pattern.
func Contains(pattern string) Where {
	return &DocumentComparison{Op: OpContains, Pattern: pattern}
}

// NotContains matches records whose document does not contain pattern.
func NotContains(pattern string) Where {
	return &DocumentComparison{Op: OpNotContains, Pattern: pattern}
}
