package model

import (
	"testing"
	"time"
)

func TestValidType(t *testing.T) {
	for _, typ := range EquipmentTypes {
		if !ValidType(typ) {
			t.Errorf("ValidType(%q) = false, want true", typ)
		}
	}
	for _, typ := range []string{"", "mouse", "Laptop", "All"} {
		if ValidType(typ) {
			t.Errorf("ValidType(%q) = true, want false", typ)
		}
	}
}

func TestLoanOpen(t *testing.T) {
	l := Loan{ID: 1}
	if !l.Open() {
		t.Error("expected loan without returned_at to be open")
	}

	now := time.Now()
	l.ReturnedAt = &now
	if l.Open() {
		t.Error("expected returned loan to be closed")
	}
}

func TestValidRole(t *testing.T) {
	if !ValidRole(RoleManager) {
		t.Error("expected manager to be valid")
	}
	if ValidRole("owner") {
		t.Error("expected owner to be invalid")
	}
}
