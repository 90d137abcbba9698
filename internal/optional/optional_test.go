package optional

import (
	"encoding/json"
	"testing"
)

func TestValue(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		v := None[int]()
		if !v.IsNone() {
			t.Fatal("expected none")
		}
		if v.UnwrapOr(7) != 7 {
			t.Fatal("expected fallback")
		}
	})

	t.Run("some", func(t *testing.T) {
		v := Some(3)
		if v.IsNone() || v.Unwrap() != 3 {
			t.Fatal("expected 3")
		}
	})

	t.Run("nil pointer is none", func(t *testing.T) {
		var p *int
		if !Some(p).IsNone() {
			t.Fatal("expected none")
		}
	})
}

func TestValue_MarshalJSON(t *testing.T) {
	type wrapper struct {
		A Value[int]    `json:"a"`
		B Value[string] `json:"b"`
	}
	data, err := json.Marshal(wrapper{A: Some(5), B: None[string]()})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"a":5,"b":null}` {
		t.Errorf("unexpected json %s", data)
	}
}
