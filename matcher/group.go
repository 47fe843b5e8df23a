// Package matcher provides standard quartz.Matcher implementations to
// select jobs and triggers by key name or group.
package matcher

import (
	"github.com/goquartz/quartz/quartz"
)

// Group implements the quartz.Matcher interface, matching keys by their
// group name. It has public fields to allow predicate pushdown in custom
// store implementations.
type Group[T quartz.Keyed] struct {
	Operator *StringOperator // uses a pointer to compare with standard operators
	Pattern  string
}

var _ quartz.Matcher[*quartz.TriggerKey] = (*Group[*quartz.TriggerKey])(nil)
var _ quartz.Matcher[*quartz.JobKey] = (*Group[*quartz.JobKey])(nil)

// NewGroup returns a new Group matcher given the string operator and
// pattern.
func NewGroup[T quartz.Keyed](operator *StringOperator, pattern string) *Group[T] {
	return &Group[T]{
		Operator: operator,
		Pattern:  pattern,
	}
}

// GroupEquals returns a matcher accepting keys whose group name is
// identical to the given string pattern.
func GroupEquals[T quartz.Keyed](pattern string) *Group[T] {
	return NewGroup[T](&StringEquals, pattern)
}

// GroupStartsWith returns a matcher accepting keys whose group name
// starts with the given string pattern.
func GroupStartsWith[T quartz.Keyed](pattern string) *Group[T] {
	return NewGroup[T](&StringStartsWith, pattern)
}

// GroupEndsWith returns a matcher accepting keys whose group name ends
// with the given string pattern.
func GroupEndsWith[T quartz.Keyed](pattern string) *Group[T] {
	return NewGroup[T](&StringEndsWith, pattern)
}

// GroupContains returns a matcher accepting keys whose group name
// contains the given string pattern.
func GroupContains[T quartz.Keyed](pattern string) *Group[T] {
	return NewGroup[T](&StringContains, pattern)
}

// AnyGroup returns a matcher accepting every key.
func AnyGroup[T quartz.Keyed]() *Group[T] {
	return NewGroup[T](&StringAny, "")
}

// IsMatch evaluates the Group matcher on the given key.
func (g *Group[T]) IsMatch(key T) bool {
	return (*g.Operator)(key.Group(), g.Pattern)
}

// EqualsGroup returns the pattern and whether the matcher selects exactly
// one group by equality. Job stores use it to record sticky paused
// groups that do not exist yet.
func (g *Group[T]) EqualsGroup() (string, bool) {
	return g.Pattern, g.Operator == &StringEquals
}

// Name implements the quartz.Matcher interface, matching keys by their
// name.
type Name[T quartz.Keyed] struct {
	Operator *StringOperator
	Pattern  string
}

var _ quartz.Matcher[*quartz.TriggerKey] = (*Name[*quartz.TriggerKey])(nil)

// NewName returns a new Name matcher given the string operator and
// pattern.
func NewName[T quartz.Keyed](operator *StringOperator, pattern string) *Name[T] {
	return &Name[T]{
		Operator: operator,
		Pattern:  pattern,
	}
}

// NameEquals returns a matcher accepting keys whose name is identical to
// the given string pattern.
func NameEquals[T quartz.Keyed](pattern string) *Name[T] {
	return NewName[T](&StringEquals, pattern)
}

// IsMatch evaluates the Name matcher on the given key.
func (n *Name[T]) IsMatch(key T) bool {
	return (*n.Operator)(key.Name(), n.Pattern)
}

// KeyEquals returns a matcher accepting exactly the given key.
func KeyEquals[T quartz.Keyed](key T) *And[T] {
	return NewAnd[T](NameEquals[T](key.Name()), GroupEquals[T](key.Group()))
}

// And implements the quartz.Matcher interface, combining inner matchers
// with a logical AND.
type And[T quartz.Keyed] struct {
	Matchers []quartz.Matcher[T]
}

// NewAnd returns a new And matcher over the given inner matchers.
func NewAnd[T quartz.Keyed](matchers ...quartz.Matcher[T]) *And[T] {
	return &And[T]{Matchers: matchers}
}

// IsMatch evaluates the And matcher on the given key.
func (a *And[T]) IsMatch(key T) bool {
	for _, m := range a.Matchers {
		if !m.IsMatch(key) {
			return false
		}
	}
	return true
}
