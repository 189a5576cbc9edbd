package core

import (
	"errors"
	"fmt"
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

// TestIDIsEmpty tests ID emptiness check
func TestIDIsEmpty(t *testing.T) {
	if !ID("").IsEmpty() {
		t.Error("Expected empty ID to be empty")
	}
	if ID("not-empty").IsEmpty() {
		t.Error("Expected non-empty ID to not be empty")
	}
}

// TestParseExpertID tests expert ID parsing
func TestParseExpertID(t *testing.T) {
	tests := []struct {
		input    string
		expected ExpertID
		hasError bool
	}{
		{"8", ExpertID("8"), false},
		{"  exp1 ", ExpertID("exp1"), false},
		{"", "", true},
		{"   ", "", true},
	}

	for _, test := range tests {
		result, err := ParseExpertID(test.input)
		if test.hasError && err == nil {
			t.Errorf("Expected error for input '%s', but got none", test.input)
		}
		if !test.hasError && err != nil {
			t.Errorf("Unexpected error for input '%s': %v", test.input, err)
		}
		if result != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, result)
		}
	}
}

// TestParseRunID tests run ID parsing
func TestParseRunID(t *testing.T) {
	tests := []struct {
		input    string
		expected RunID
		hasError bool
	}{
		{"run-123", RunID("run-123"), false},
		{"", "", true},
	}

	for _, test := range tests {
		result, err := ParseRunID(test.input)
		if test.hasError && err == nil {
			t.Errorf("Expected error for input '%s', but got none", test.input)
		}
		if !test.hasError && err != nil {
			t.Errorf("Unexpected error for input '%s': %v", test.input, err)
		}
		if result != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, result)
		}
	}
}

func TestFingerprintIsOrderIndependent(t *testing.T) {
	a, err := Fingerprint(map[string]interface{}{"seed": 42, "files": []string{"a", "b"}})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Fingerprint(map[string]interface{}{"files": []string{"a", "b"}, "seed": 42})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("fingerprints differ: %s vs %s", a, b)
	}
	c, _ := Fingerprint(map[string]interface{}{"files": []string{"a", "b"}, "seed": 43})
	if a == c {
		t.Error("expected different fingerprint for different seed")
	}
	if len(a.Short()) != 12 {
		t.Errorf("expected 12-char short hash, got %q", a.Short())
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(NewRosterError(3, 2, 0)) {
		t.Error("roster error must be fatal")
	}
	if !IsFatal(fmt.Errorf("case x: %w", ErrDegenerateWeights)) {
		t.Error("wrapped degenerate weights must be fatal")
	}
	if IsFatal(NewMalformedEstimateError("1", "q1", "not increasing")) {
		t.Error("malformed estimate must not be fatal")
	}
	if !errors.Is(NewNonFiniteScoreError("KS", 0), ErrNonFiniteScore) {
		t.Error("expected ErrNonFiniteScore")
	}
}
