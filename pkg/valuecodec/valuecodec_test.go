package valuecodec_test

import (
	"testing"

	"github.com/gitpan/cachemmap/pkg/valuecodec"
)

type point struct {
	X, Y int
	Tag  string
}

func TestJSON_RoundTrip(t *testing.T) {
	want := point{X: 3, Y: 4, Tag: "corner"}

	enc, err := valuecodec.JSON{}.Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var got point
	if err := (valuecodec.JSON{}).Decode(enc, &got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestGob_RoundTrip(t *testing.T) {
	want := point{X: -1, Y: 200, Tag: "origin-ish"}

	enc, err := valuecodec.Gob{}.Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var got point
	if err := (valuecodec.Gob{}).Decode(enc, &got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
