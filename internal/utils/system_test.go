package utils

import (
	"testing"
)

func TestGetUsername(t *testing.T) {
	name, err := GetUsername()
	if err != nil {
		t.Skipf("no user database available: %v", err)
	}
	if name == "" {
		t.Fatal("Expected non-empty username")
	}
}
