package firestore

import "testing"

func TestNew_RequiresClient(t *testing.T) {
	if _, err := New(nil, Config{}); err == nil {
		t.Fatal("Expected error for nil client")
	}
}
