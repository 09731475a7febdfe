package model

import (
	"fmt"
	"strings"
)

// Field names a top-level field of the remote document
type Field string

const (
	FieldProgressionMarker Field = "progressionMarker"
	FieldCurrency          Field = "currency"
	FieldFoundWords        Field = "perLevelFoundWords"
	FieldBonusTokens       Field = "foundBonusTokens"
	FieldLastSeen          Field = "lastSeenTimestamp"
)

const counterFieldPrefix = "counters."

// CounterField returns the field addressing a named counter
func CounterField(name string) Field {
	return Field(counterFieldPrefix + name)
}

// Counter returns the counter name when f addresses a counter
func (f Field) Counter() (string, bool) {
	name, ok := strings.CutPrefix(string(f), counterFieldPrefix)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// IsScalar reports whether f may be written through last-write-wins scalar
// updates. Currency, the marker and token collections never are.
func (f Field) IsScalar() bool {
	_, ok := f.Counter()
	return ok
}

// OpKind identifies a batch operation
type OpKind string

const (
	OpUnion     OpKind = "union"
	OpIncrement OpKind = "increment"
	OpSet       OpKind = "set"
	OpClearUnit OpKind = "clear_unit"
)

// Operation is one field-level change inside an atomic batch
type Operation struct {
	Kind   OpKind
	Field  Field
	Unit   string   // for FieldFoundWords
	Tokens []string // for OpUnion
	Value  int64    // delta for OpIncrement, new value for OpSet
}

// UnionWords appends tokens to a unit's found words
func UnionWords(unit string, tokens ...string) Operation {
	return Operation{Kind: OpUnion, Field: FieldFoundWords, Unit: unit, Tokens: tokens}
}

// UnionBonus appends tokens to the bonus token set
func UnionBonus(tokens ...string) Operation {
	return Operation{Kind: OpUnion, Field: FieldBonusTokens, Tokens: tokens}
}

// Increment adds a signed delta to currency or a counter
func Increment(field Field, delta int64) Operation {
	return Operation{Kind: OpIncrement, Field: field, Value: delta}
}

// SetMarker sets the progression marker
func SetMarker(marker int) Operation {
	return Operation{Kind: OpSet, Field: FieldProgressionMarker, Value: int64(marker)}
}

// ClearUnit drops every token found in a unit
func ClearUnit(unit string) Operation {
	return Operation{Kind: OpClearUnit, Field: FieldFoundWords, Unit: unit}
}

// Validate rejects operations that do not fit their field
func (o Operation) Validate() error {
	switch o.Kind {
	case OpUnion:
		if o.Field == FieldFoundWords && o.Unit == "" {
			return fmt.Errorf("%w: union without unit", ErrInvalidUnit)
		}
		if o.Field != FieldFoundWords && o.Field != FieldBonusTokens {
			return fmt.Errorf("%w: union on %s", ErrInvalidField, o.Field)
		}
	case OpIncrement:
		if o.Field != FieldCurrency && !o.Field.IsScalar() {
			return fmt.Errorf("%w: increment on %s", ErrInvalidField, o.Field)
		}
	case OpSet:
		if o.Field != FieldProgressionMarker && !o.Field.IsScalar() {
			return fmt.Errorf("%w: set on %s", ErrInvalidField, o.Field)
		}
	case OpClearUnit:
		if o.Unit == "" {
			return fmt.Errorf("%w: clear without unit", ErrInvalidUnit)
		}
	default:
		return fmt.Errorf("unknown operation kind %q", o.Kind)
	}
	return nil
}

// Apply returns a copy of d with every operation applied, or an error and no
// copy when any operation is invalid or the result would overdraw currency
func (d *Document) Apply(ops []Operation) (*Document, error) {
	next := d.Clone()
	for _, op := range ops {
		if err := op.Validate(); err != nil {
			return nil, err
		}
		switch op.Kind {
		case OpUnion:
			if op.Field == FieldBonusTokens {
				next.FoundBonusTokens = NewTokenSet(next.FoundBonusTokens...).union(op.Tokens)
			} else {
				next.PerLevelFoundWords[op.Unit] = NewTokenSet(next.PerLevelFoundWords[op.Unit]...).union(op.Tokens)
			}
		case OpIncrement:
			if op.Field == FieldCurrency {
				next.Currency += op.Value
			} else {
				name, _ := op.Field.Counter()
				next.Counters[name] += op.Value
			}
		case OpSet:
			if op.Field == FieldProgressionMarker {
				next.ProgressionMarker = int(op.Value)
			} else {
				name, _ := op.Field.Counter()
				next.Counters[name] = op.Value
			}
		case OpClearUnit:
			delete(next.PerLevelFoundWords, op.Unit)
		}
	}
	if next.Currency < 0 {
		return nil, ErrInsufficientCurrency
	}
	return next, nil
}

// CurrencyDelta sums the currency increments of a batch
func CurrencyDelta(ops []Operation) int64 {
	var delta int64
	for _, op := range ops {
		if op.Kind == OpIncrement && op.Field == FieldCurrency {
			delta += op.Value
		}
	}
	return delta
}

func (s TokenSet) union(tokens []string) []string {
	for _, t := range tokens {
		s.Add(t)
	}
	return s.Sorted()
}
