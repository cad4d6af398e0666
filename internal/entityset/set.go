// Package entityset provides Set, an ordered collection whose items each
// carry a display name that is unique within the set.
package entityset

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strconv"
)

var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrNotFound        = errors.New("item not found")
	ErrNameTaken       = errors.New("name already taken")
	ErrReservedSlot    = errors.New("reserved slot")
	ErrDuplicateItem   = errors.New("item already present")
	ErrCorrupt         = errors.New("names and items out of step")
)

// Set keeps items and their names in two parallel slices. Indices below the
// reserved count are fixed: they cannot be removed, replaced or reordered.
type Set[T comparable] struct {
	items    []T
	names    []string
	reserved int
}

type Option func(*options)

type options struct {
	reserved int
}

// WithReserved protects the first n slots once they are filled.
func WithReserved(n int) Option {
	return func(o *options) {
		o.reserved = n
	}
}

func New[T comparable](opts ...Option) *Set[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Set[T]{reserved: o.reserved}
}

func (s *Set[T]) Count() int {
	return len(s.items)
}

func (s *Set[T]) Reserved() int {
	return s.reserved
}

// NextName returns base when no item uses it, otherwise base followed by a
// space and the smallest positive integer that makes it unused.
func (s *Set[T]) NextName(base string) string {
	if !s.hasName(base) {
		return base
	}
	for n := 1; ; n++ {
		candidate := base + " " + strconv.Itoa(n)
		if !s.hasName(candidate) {
			return candidate
		}
	}
}

// Add appends item under name, or the next free variant of name. It returns
// the name actually stored. Adding an item already present is a no-op that
// returns its current name.
func (s *Set[T]) Add(item T, name string) string {
	if i := s.IndexOf(item); i >= 0 {
		return s.names[i]
	}
	name = s.NextName(name)
	s.items = append(s.items, item)
	s.names = append(s.names, name)
	return name
}

// Insert places item at index, shifting later items right.
func (s *Set[T]) Insert(index int, item T, name string) (string, error) {
	if index < 0 || index > len(s.items) {
		return "", fmt.Errorf("insert at %d of %d: %w", index, len(s.items), ErrIndexOutOfRange)
	}
	if s.isReserved(index) && index < len(s.items) {
		return "", fmt.Errorf("insert at %d: %w", index, ErrReservedSlot)
	}
	if s.Contains(item) {
		return "", ErrDuplicateItem
	}
	name = s.NextName(name)
	s.items = slices.Insert(s.items, index, item)
	s.names = slices.Insert(s.names, index, name)
	return name, nil
}

func (s *Set[T]) Remove(item T) error {
	i := s.IndexOf(item)
	if i < 0 {
		return ErrNotFound
	}
	_, err := s.RemoveAt(i)
	return err
}

func (s *Set[T]) RemoveAt(index int) (T, error) {
	var zero T
	if err := s.checkIndex(index); err != nil {
		return zero, err
	}
	if s.isReserved(index) {
		return zero, fmt.Errorf("remove at %d: %w", index, ErrReservedSlot)
	}
	item := s.items[index]
	s.items = slices.Delete(s.items, index, index+1)
	s.names = slices.Delete(s.names, index, index+1)
	return item, nil
}

// Replace swaps the item at index for item. The new name may reuse the name
// of the item being replaced.
func (s *Set[T]) Replace(index int, item T, name string) (string, error) {
	if err := s.checkIndex(index); err != nil {
		return "", err
	}
	if s.isReserved(index) {
		return "", fmt.Errorf("replace at %d: %w", index, ErrReservedSlot)
	}
	if j := s.IndexOf(item); j >= 0 && j != index {
		return "", ErrDuplicateItem
	}
	old := s.names[index]
	s.names[index] = ""
	if name != old {
		name = s.NextName(name)
	}
	s.items[index] = item
	s.names[index] = name
	return name, nil
}

// Move relocates the item at from so it ends up before the item currently
// at to. When to is past from it is decremented first, because removing the
// source shifts the tail down by one.
func (s *Set[T]) Move(from, to int) error {
	if err := s.checkIndex(from); err != nil {
		return err
	}
	if to < 0 || to > len(s.items) {
		return fmt.Errorf("move to %d of %d: %w", to, len(s.items), ErrIndexOutOfRange)
	}
	if s.isReserved(from) || s.isReserved(to) {
		return fmt.Errorf("move %d to %d: %w", from, to, ErrReservedSlot)
	}
	if to > from {
		to--
	}
	item, name := s.items[from], s.names[from]
	s.items = slices.Delete(s.items, from, from+1)
	s.names = slices.Delete(s.names, from, from+1)
	s.items = slices.Insert(s.items, to, item)
	s.names = slices.Insert(s.names, to, name)
	return nil
}

// Rename changes the name of item. Unlike Add it does not pick a free
// variant: a name held by another item is rejected.
func (s *Set[T]) Rename(item T, name string) error {
	i := s.IndexOf(item)
	if i < 0 {
		return ErrNotFound
	}
	if j := s.IndexOfName(name); j >= 0 && j != i {
		return fmt.Errorf("rename to %q: %w", name, ErrNameTaken)
	}
	s.names[i] = name
	return nil
}

func (s *Set[T]) Get(index int) (T, error) {
	var zero T
	if err := s.checkIndex(index); err != nil {
		return zero, err
	}
	return s.items[index], nil
}

func (s *Set[T]) NameAt(index int) (string, error) {
	if err := s.checkIndex(index); err != nil {
		return "", err
	}
	return s.names[index], nil
}

func (s *Set[T]) NameOf(item T) (string, bool) {
	i := s.IndexOf(item)
	if i < 0 {
		return "", false
	}
	return s.names[i], true
}

func (s *Set[T]) IndexOf(item T) int {
	return slices.Index(s.items, item)
}

func (s *Set[T]) IndexOfName(name string) int {
	return slices.Index(s.names, name)
}

func (s *Set[T]) Contains(item T) bool {
	return s.IndexOf(item) >= 0
}

func (s *Set[T]) Find(pred func(T) bool) (T, bool) {
	for _, item := range s.items {
		if pred(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func (s *Set[T]) FindAll(pred func(T) bool) []T {
	var out []T
	for _, item := range s.items {
		if pred(item) {
			out = append(out, item)
		}
	}
	return out
}

func (s *Set[T]) Items() []T {
	return slices.Clone(s.items)
}

func (s *Set[T]) Names() []string {
	return slices.Clone(s.names)
}

// All yields index and item pairs in order.
func (s *Set[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i, item := range s.items {
			if !yield(i, item) {
				return
			}
		}
	}
}

func (s *Set[T]) Clone() *Set[T] {
	return &Set[T]{
		items:    slices.Clone(s.items),
		names:    slices.Clone(s.names),
		reserved: s.reserved,
	}
}

// Retain drops every item for which keep returns false, reserved slots
// included. It is meant for repairing loaded data, not for editing. It
// returns the dropped items.
func (s *Set[T]) Retain(keep func(T) bool) []T {
	var dropped []T
	items := s.items[:0]
	names := s.names[:0]
	for i, item := range s.items {
		if keep(item) {
			items = append(items, item)
			names = append(names, s.names[i])
			continue
		}
		dropped = append(dropped, item)
	}
	s.items = items
	s.names = names
	return dropped
}

// Remap replaces every item with fn(item), dropping items for which fn
// reports false. Names follow their items.
func (s *Set[T]) Remap(fn func(T) (T, bool)) {
	items := make([]T, 0, len(s.items))
	names := make([]string, 0, len(s.names))
	for i, item := range s.items {
		mapped, ok := fn(item)
		if !ok {
			continue
		}
		items = append(items, mapped)
		names = append(names, s.names[i])
	}
	s.items = items
	s.names = names
}

// Check verifies that names and items are in lockstep and that no name or
// item repeats.
func (s *Set[T]) Check() error {
	if len(s.items) != len(s.names) {
		return fmt.Errorf("%d items, %d names: %w", len(s.items), len(s.names), ErrCorrupt)
	}
	seenNames := make(map[string]struct{}, len(s.names))
	seenItems := make(map[T]struct{}, len(s.items))
	for i, name := range s.names {
		if _, dup := seenNames[name]; dup {
			return fmt.Errorf("name %q repeats: %w", name, ErrNameTaken)
		}
		seenNames[name] = struct{}{}
		if _, dup := seenItems[s.items[i]]; dup {
			return fmt.Errorf("item at %d repeats: %w", i, ErrDuplicateItem)
		}
		seenItems[s.items[i]] = struct{}{}
	}
	return nil
}

type setJSON[T comparable] struct {
	Items    []T      `json:"items"`
	Names    []string `json:"names"`
	Reserved int      `json:"reserved,omitempty"`
}

func (s *Set[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(setJSON[T]{Items: s.items, Names: s.names, Reserved: s.reserved})
}

func (s *Set[T]) UnmarshalJSON(data []byte) error {
	var raw setJSON[T]
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded := Set[T]{items: raw.Items, names: raw.Names, reserved: raw.Reserved}
	if err := decoded.Check(); err != nil {
		return err
	}
	*s = decoded
	return nil
}

func (s *Set[T]) hasName(name string) bool {
	return slices.Contains(s.names, name)
}

func (s *Set[T]) isReserved(index int) bool {
	return index < s.reserved
}

func (s *Set[T]) checkIndex(index int) error {
	if index < 0 || index >= len(s.items) {
		return fmt.Errorf("index %d of %d: %w", index, len(s.items), ErrIndexOutOfRange)
	}
	return nil
}
