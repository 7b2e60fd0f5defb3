package storage

import (
	"encoding/base64"
	"testing"
)

func TestParseDataURI(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	uri := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(payload)

	contentType, data, ok := ParseDataURI(uri)
	if !ok {
		t.Fatal("expected a valid data URI")
	}
	if contentType != "image/jpeg" {
		t.Errorf("unexpected content type %q", contentType)
	}
	if string(data) != string(payload) {
		t.Errorf("payload mismatch: got %v", data)
	}
}

func TestParseDataURI_Rejects(t *testing.T) {
	cases := []string{
		"https://cdn.example.com/car.jpg",
		"data:image/png,not-base64-marker",
		"data:image/png;base64",
		"data:image/png;base64,!!!not-base64!!!",
		"",
	}
	for _, uri := range cases {
		if _, _, ok := ParseDataURI(uri); ok {
			t.Errorf("expected %q to be rejected", uri)
		}
	}
}
