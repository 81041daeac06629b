package session

import "testing"

func TestNewSessionKey(t *testing.T) {
	a, err := NewSessionKey()
	if err != nil {
		t.Fatalf("new session key: %v", err)
	}
	b, err := NewSessionKey()
	if err != nil {
		t.Fatalf("new session key: %v", err)
	}
	if a == b || len(a) != 43 {
		t.Fatalf("unexpected keys %q %q", a, b)
	}
}
