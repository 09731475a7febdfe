// Package progression holds the ordered sequence of content units a player
// advances through. Unit ids are ascending but need not be contiguous.
package progression

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/mcoot/wordsync/internal/model"
)

// Order is an immutable, ascending sequence of unit ids
type Order struct {
	units []int
}

// File is the YAML layout of a progression file:
//
//	units: [1, 2, 3, 5, 8]
type File struct {
	Units []int `yaml:"units"`
}

// New builds an order from unit ids in any order; duplicates are dropped
func New(units []int) (*Order, error) {
	if len(units) == 0 {
		return nil, model.ErrEmptyProgression
	}
	sorted := slices.Clone(units)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	if sorted[0] < 1 {
		return nil, fmt.Errorf("unit ids must be positive, got %d", sorted[0])
	}
	return &Order{units: sorted}, nil
}

// Sequential returns the order 1..n
func Sequential(n int) *Order {
	units := make([]int, n)
	for i := range units {
		units[i] = i + 1
	}
	return &Order{units: units}
}

// Load decodes a progression from YAML, rejecting unknown fields
func Load(r io.Reader) (*Order, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, model.ErrEmptyProgression
		}
		return nil, fmt.Errorf("decode progression: %w", err)
	}
	return New(f.Units)
}

// LoadFile reads a progression YAML file
func LoadFile(path string) (*Order, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	order, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return order, nil
}

// First returns the starting unit
func (o *Order) First() int {
	return o.units[0]
}

// Next returns the unit following after. after need not be a member: the
// smallest unit greater than it is returned.
func (o *Order) Next(after int) (int, error) {
	i, found := slices.BinarySearch(o.units, after)
	if found {
		i++
	}
	if i >= len(o.units) {
		return 0, model.ErrProgressionComplete
	}
	return o.units[i], nil
}

// Contains reports whether unit is part of the order
func (o *Order) Contains(unit int) bool {
	_, found := slices.BinarySearch(o.units, unit)
	return found
}

// Len returns the number of units
func (o *Order) Len() int {
	return len(o.units)
}

// Units returns a copy of the unit ids
func (o *Order) Units() []int {
	return slices.Clone(o.units)
}
