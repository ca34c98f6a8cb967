package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestIDDecodesNumberAndString(t *testing.T) {
	var fromNumber, fromString struct {
		ID ID `json:"id"`
	}
	if err := json.Unmarshal([]byte(`{"id":5}`), &fromNumber); err != nil {
		t.Fatalf("decode number: %v", err)
	}
	if err := json.Unmarshal([]byte(`{"id":"5"}`), &fromString); err != nil {
		t.Fatalf("decode string: %v", err)
	}
	if fromNumber.ID != 5 || fromNumber.ID != fromString.ID {
		t.Fatalf("expected both ids to be 5, got %d and %d", fromNumber.ID, fromString.ID)
	}
}

func TestIDDecodeRejectsGarbage(t *testing.T) {
	var id ID
	if err := json.Unmarshal([]byte(`"five"`), &id); err == nil {
		t.Fatalf("expected error for non-numeric id")
	}
}

func TestParseID(t *testing.T) {
	id, err := ParseID(" 12 ")
	if err != nil || id != 12 {
		t.Fatalf("unexpected parse: id=%d err=%v", id, err)
	}
	if _, err := ParseID(""); err == nil {
		t.Fatalf("expected error for empty id")
	}
	if _, err := ParseID("1.5"); err == nil {
		t.Fatalf("expected error for fractional id")
	}
}

func TestRestaurantDecodesServerPayload(t *testing.T) {
	payload := `{
		"id": 1,
		"name": "Mission Chinese Food",
		"neighborhood": "Manhattan",
		"photograph": "1",
		"address": "171 E Broadway, New York, NY 10002",
		"latlng": {"lat": 40.713829, "lng": -73.989667},
		"cuisine_type": "Asian",
		"operating_hours": {"Monday": "5:30 pm - 11:00 pm"},
		"is_favorite": "true",
		"createdAt": 1504095563444,
		"updatedAt": "2018-07-01T10:00:00.000Z"
	}`
	var r Restaurant
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		t.Fatalf("decode restaurant: %v", err)
	}
	if r.ID != 1 || r.CuisineType != "Asian" || r.Neighborhood != "Manhattan" {
		t.Fatalf("unexpected restaurant: %+v", r)
	}
	if !bool(r.IsFavorite) {
		t.Fatalf("expected favorite flag from string")
	}
	if r.CreatedAt.UnixMilli() != 1504095563444 {
		t.Fatalf("unexpected createdAt: %v", r.CreatedAt)
	}
	if r.UpdatedAt.Year() != 2018 {
		t.Fatalf("unexpected updatedAt: %v", r.UpdatedAt)
	}
	if r.PageURL() != "./restaurant.html?id=1" {
		t.Fatalf("unexpected page url: %s", r.PageURL())
	}
	if r.ImageURL() != "/img/1.jpg" {
		t.Fatalf("unexpected image url: %s", r.ImageURL())
	}
}

func TestReviewRoundTripKeepsFields(t *testing.T) {
	created := time.Date(2018, 6, 1, 12, 0, 0, 0, time.UTC)
	in := Review{ID: -3, RestaurantID: 2, Name: "Ada", Rating: 4, Comments: "great", CreatedAt: Timestamp{created}}
	body, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("encode review: %v", err)
	}
	var out Review
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode review: %v", err)
	}
	if out.ID != in.ID || out.RestaurantID != 2 || out.Rating != 4 || !out.CreatedAt.Equal(created) {
		t.Fatalf("unexpected review: %+v", out)
	}
	if !out.Provisional() {
		t.Fatalf("expected negative id to be provisional")
	}
	if !out.UpdatedAt.IsZero() {
		t.Fatalf("expected zero updatedAt to survive as zero")
	}
}

func TestReviewRatingFromString(t *testing.T) {
	var r Review
	if err := json.Unmarshal([]byte(`{"restaurant_id":"3","rating":"5"}`), &r); err != nil {
		t.Fatalf("decode review: %v", err)
	}
	if r.RestaurantID != 3 || r.Rating != 5 {
		t.Fatalf("unexpected review: %+v", r)
	}
}
