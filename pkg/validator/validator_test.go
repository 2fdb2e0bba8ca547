package validator

import "testing"

type inviteRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Membership string `json:"membership" validate:"required,oneof=monthly casual"`
}

func TestValidateStructOK(t *testing.T) {
	req := inviteRequest{Email: "player@pelada.app", Membership: "monthly"}
	if err := ValidateStruct(&req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	req := inviteRequest{Email: "not-an-email", Membership: "weekly"}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation failure")
	}

	failures, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(failures))
	}
	if failures[0].Field != "email" {
		t.Fatalf("expected json tag name, got %s", failures[0].Field)
	}
	if failures[1].Tag != "oneof" {
		t.Fatalf("expected oneof failure, got %s", failures[1].Tag)
	}
}
