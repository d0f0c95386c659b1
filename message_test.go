package zsocket

import (
	"bytes"
	"testing"
)

func TestMessage_SinglePart(t *testing.T) {
	m := NewMessage([]byte("hello"))

	if m.Frames() != 1 {
		t.Errorf("Frames = %d, want 1", m.Frames())
	}
	if m.Length() != 5 {
		t.Errorf("Length = %d, want 5", m.Length())
	}
	if !bytes.Equal(m.Body(), []byte("hello")) {
		t.Errorf("Body = %q", m.Body())
	}
}

func TestMessage_MultiPart(t *testing.T) {
	m := Message{[]byte("a"), []byte("bc"), []byte("")}

	if m.Frames() != 3 {
		t.Errorf("Frames = %d, want 3", m.Frames())
	}
	if m.Length() != 3 {
		t.Errorf("Length = %d, want 3", m.Length())
	}
	if string(m.Body()) != "abc" {
		t.Errorf("Body = %q, want abc", m.Body())
	}
}

func TestMessage_Empty(t *testing.T) {
	var m Message
	if m.Body() != nil || m.Length() != 0 || m.Frames() != 0 {
		t.Errorf("empty message = %q", m)
	}
}

func TestMessage_Equal(t *testing.T) {
	a := Message{[]byte("a"), []byte("b")}

	tests := []struct {
		name string
		o    Message
		want bool
	}{
		{"same", Message{[]byte("a"), []byte("b")}, true},
		{"reordered", Message{[]byte("b"), []byte("a")}, false},
		{"joined", Message{[]byte("ab")}, false},
		{"longer", Message{[]byte("a"), []byte("b"), []byte("c")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Equal(tt.o); got != tt.want {
				t.Errorf("Equal = %v, want %v", got, tt.want)
			}
		})
	}
}
