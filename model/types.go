package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LatLng is a geographic coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Restaurant is a restaurant record as served by the API.
type Restaurant struct {
	ID             ID                `json:"id"`
	Name           string            `json:"name"`
	Neighborhood   string            `json:"neighborhood"`
	CuisineType    string            `json:"cuisine_type"`
	Address        string            `json:"address,omitempty"`
	LatLng         LatLng            `json:"latlng"`
	Photograph     string            `json:"photograph,omitempty"`
	OperatingHours map[string]string `json:"operating_hours,omitempty"`
	IsFavorite     Flag              `json:"is_favorite"`
	CreatedAt      Timestamp         `json:"createdAt"`
	UpdatedAt      Timestamp         `json:"updatedAt"`
}

// RecordID implements persist.Record.
func (r Restaurant) RecordID() ID { return r.ID }

// PageURL is the relative link to the restaurant detail page.
func (r Restaurant) PageURL() string {
	return "./restaurant.html?id=" + r.ID.String()
}

// ImageURL is the static image path for the restaurant.
func (r Restaurant) ImageURL() string {
	return "/img/" + r.ID.String() + ".jpg"
}

// Review is a user review of a restaurant. Reviews created while offline carry
// a negative provisional id until the server assigns one.
type Review struct {
	ID           ID        `json:"id,omitempty"`
	RestaurantID ID        `json:"restaurant_id"`
	Name         string    `json:"name"`
	Rating       Rating    `json:"rating"`
	Comments     string    `json:"comments"`
	CreatedAt    Timestamp `json:"createdAt"`
	UpdatedAt    Timestamp `json:"updatedAt"`
}

// RecordID implements persist.Record.
func (r Review) RecordID() ID { return r.ID }

// Provisional reports whether the id was assigned locally.
func (r Review) Provisional() bool { return r.ID < 0 }

// Flag is a boolean that also accepts "true"/"false" strings.
type Flag bool

// UnmarshalJSON accepts true, "true", "false", null.
func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = false
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode flag: %w", err)
		}
		if strings.TrimSpace(s) == "" {
			*f = false
			return nil
		}
		v, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("decode flag: %w", err)
		}
		*f = Flag(v)
		return nil
	}
	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode flag: %w", err)
	}
	*f = Flag(v)
	return nil
}

// Timestamp decodes either epoch milliseconds or RFC 3339 text and always
// encodes as RFC 3339. The zero value encodes as null.
type Timestamp struct {
	time.Time
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode timestamp: %w", err)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			t.Time = time.UnixMilli(ms).UTC()
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("decode timestamp: %w", err)
		}
		t.Time = parsed
		return nil
	}
	var ms json.Number
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	n, err := ms.Int64()
	if err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	t.Time = time.UnixMilli(n).UTC()
	return nil
}
