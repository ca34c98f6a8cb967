package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID is the canonical identifier for restaurants and reviews.
// The API is inconsistent about sending ids as numbers or numeric strings,
// so decoding accepts both and everything downstream compares int64 values.
type ID int64

// ParseID parses a decimal identifier, tolerating surrounding whitespace.
func ParseID(raw string) (ID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("parse id: empty value")
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse id %q: %w", raw, err)
	}
	return ID(n), nil
}

// String renders the id in decimal.
func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// UnmarshalJSON accepts 5, "5" and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	n, err := decodeFlexInt(data)
	if err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = ID(n)
	return nil
}

// Rating is a review score. Like ID it tolerates numeric strings on the wire.
type Rating int

// UnmarshalJSON accepts 4, "4" and null.
func (r *Rating) UnmarshalJSON(data []byte) error {
	n, err := decodeFlexInt(data)
	if err != nil {
		return fmt.Errorf("decode rating: %w", err)
	}
	*r = Rating(n)
	return nil
}

func decodeFlexInt(data []byte) (int64, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return 0, nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, err
		}
		if strings.TrimSpace(s) == "" {
			return 0, nil
		}
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return 0, err
	}
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
