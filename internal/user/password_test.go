package user

import "testing"

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := HashPassword("p@ssw0rd")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "" {
		t.Fatalf("expected non-empty hash")
	}
	if !VerifyPassword("p@ssw0rd", hash) {
		t.Fatalf("expected verify ok")
	}
	if VerifyPassword("wrong", hash) {
		t.Fatalf("expected verify fail")
	}
}

func TestVerifyPasswordEmptyInputs(t *testing.T) {
	if VerifyPassword("", "") {
		t.Fatalf("expected empty password to fail")
	}
	if VerifyPassword("p", "") {
		t.Fatalf("expected empty hash to fail")
	}
}
