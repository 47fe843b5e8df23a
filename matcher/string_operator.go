package matcher

import "strings"

// StringOperator is a function to equate two strings.
type StringOperator func(string, string) bool

// String operators.
var (
	StringEquals     StringOperator = stringsEqual
	StringStartsWith StringOperator = strings.HasPrefix
	StringEndsWith   StringOperator = strings.HasSuffix
	StringContains   StringOperator = strings.Contains
	StringAny        StringOperator = stringAny
)

func stringsEqual(source, target string) bool {
	return source == target
}

func stringAny(_, _ string) bool {
	return true
}
