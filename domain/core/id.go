package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RunID    ID
	CaseID   ID
	ExpertID ID
	ItemID   ID
)

// String conversions for domain IDs
func (id RunID) String() string    { return ID(id).String() }
func (id CaseID) String() string   { return ID(id).String() }
func (id ExpertID) String() string { return ID(id).String() }
func (id ItemID) String() string   { return ID(id).String() }

// NewRunID creates a time-ordered identifier for one evaluation run
func NewRunID() RunID {
	return RunID(NewID())
}

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	return RunID(s), nil
}

// ParseCaseID parses a string into CaseID
func ParseCaseID(s string) (CaseID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("case ID cannot be empty")
	}
	return CaseID(s), nil
}

// ParseExpertID parses a string into ExpertID
func ParseExpertID(s string) (ExpertID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("expert ID cannot be empty")
	}
	return ExpertID(strings.TrimSpace(s)), nil
}

// ParseItemID parses a string into ItemID
func ParseItemID(s string) (ItemID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("item ID cannot be empty")
	}
	return ItemID(strings.TrimSpace(s)), nil
}
