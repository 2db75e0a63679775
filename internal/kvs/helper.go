package kvs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformed is returned when a stored value cannot be decoded as its
// declared type.
var ErrMalformed = errors.New("malformed metadata value")

// Helper is a typed accessor for the entries of one table, partition and
// aspect.
type Helper struct {
	store     *Store
	tableID   string
	partition string
	aspect    string
}

// Helper returns a typed accessor scoped to tableID/partition/aspect.
func (s *Store) Helper(tableID, partition, aspect string) *Helper {
	return &Helper{store: s, tableID: tableID, partition: partition, aspect: aspect}
}

// Aspect returns a helper for another aspect of the same partition.
func (h *Helper) Aspect(aspect string) *Helper {
	return &Helper{store: h.store, tableID: h.tableID, partition: h.partition, aspect: aspect}
}

// Partition returns the partition the helper is scoped to.
func (h *Helper) Partition() string { return h.partition }

// AspectName returns the aspect the helper is scoped to.
func (h *Helper) AspectName() string { return h.aspect }

func (h *Helper) raw(ctx context.Context, key string) (string, bool, error) {
	e, err := h.store.Get(ctx, h.tableID, h.partition, h.aspect, key)
	if err != nil || e == nil || e.Value == nil {
		return "", false, err
	}
	return *e.Value, true, nil
}

func (h *Helper) set(ctx context.Context, key, typ, value string) error {
	return h.store.Set(ctx, Entry{
		TableID:   h.tableID,
		Partition: h.partition,
		Aspect:    h.aspect,
		Key:       key,
		Type:      typ,
		Value:     &value,
	})
}

// String returns a string value and whether it is present.
func (h *Helper) String(ctx context.Context, key string) (string, bool, error) {
	return h.raw(ctx, key)
}

// SetString stores a string value. A nil value removes the key.
func (h *Helper) SetString(ctx context.Context, key string, value *string) error {
	if value == nil {
		return h.Remove(ctx, key)
	}
	return h.set(ctx, key, TypeString, *value)
}

// Int returns an integer value and whether it is present.
func (h *Helper) Int(ctx context.Context, key string) (int, bool, error) {
	raw, ok, err := h.raw(ctx, key)
	if err != nil || !ok {
		return 0, false, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s=%q", ErrMalformed, key, raw)
	}
	return n, true, nil
}

// SetInt stores an integer value.
func (h *Helper) SetInt(ctx context.Context, key string, value int) error {
	return h.set(ctx, key, TypeInteger, strconv.Itoa(value))
}

// Bool returns a boolean value and whether it is present.
func (h *Helper) Bool(ctx context.Context, key string) (bool, bool, error) {
	raw, ok, err := h.raw(ctx, key)
	if err != nil || !ok {
		return false, false, err
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("%w: %s=%q", ErrMalformed, key, raw)
	}
	return b, true, nil
}

// SetBool stores a boolean value.
func (h *Helper) SetBool(ctx context.Context, key string, value bool) error {
	return h.set(ctx, key, TypeBoolean, strconv.FormatBool(value))
}

// StringList returns a JSON array of strings and whether it is present.
func (h *Helper) StringList(ctx context.Context, key string) ([]string, bool, error) {
	raw, ok, err := h.raw(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	list, err := DecodeStringList(raw)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", key, err)
	}
	return list, true, nil
}

// SetStringList stores a JSON array of strings.
func (h *Helper) SetStringList(ctx context.Context, key string, list []string) error {
	return h.set(ctx, key, TypeArray, EncodeStringList(list))
}

// Object decodes a JSON value into v and reports whether it was present.
func (h *Helper) Object(ctx context.Context, key string, v any) (bool, error) {
	raw, ok, err := h.raw(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
	}
	return true, nil
}

// SetObject stores v encoded as JSON.
func (h *Helper) SetObject(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return h.set(ctx, key, TypeObject, string(data))
}

// Remove deletes key.
func (h *Helper) Remove(ctx context.Context, key string) error {
	return h.store.Delete(ctx, h.tableID, h.partition, h.aspect, key)
}

// DecodeStringList parses a JSON array of strings. An empty input is an
// empty list.
func DecodeStringList(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("%w: %q is not a JSON string list", ErrMalformed, raw)
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

// EncodeStringList renders list as a JSON array. A nil list encodes as [].
func EncodeStringList(list []string) string {
	if list == nil {
		list = []string{}
	}
	data, _ := json.Marshal(list)
	return string(data)
}
