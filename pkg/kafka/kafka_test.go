package kafka

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type payload struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

func TestEncodeDecode(t *testing.T) {
	msgs, err := encode([]Event{{Key: "a", Value: payload{Query: "cat", K: 2}}})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || string(msgs[0].Key) != "a" {
		t.Fatalf("messages = %+v", msgs)
	}
	got, err := DecodeJSON[payload](msgs[0].Value)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(payload{Query: "cat", K: 2}, got); diff != "" {
		t.Errorf("Diff: (-want +got)\n%s", diff)
	}
}

func TestEncodeRejectsUnencodable(t *testing.T) {
	if _, err := encode([]Event{{Key: "ok", Value: 1}, {Key: "bad", Value: make(chan int)}}); err == nil {
		t.Error("expected marshal error")
	}
	if _, err := DecodeJSON[payload]([]byte("{")); err == nil {
		t.Error("expected decode error")
	}
}
