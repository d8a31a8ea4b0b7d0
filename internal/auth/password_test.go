package auth

import "testing"

func TestHashPassword_VerifyPassword(t *testing.T) {
	h, err := HashPassword("Secret123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if h == "Secret123" || h == "" {
		t.Fatalf("hash must differ from the plain password")
	}
	if !VerifyPassword(h, "Secret123") {
		t.Fatalf("expected match")
	}
	if VerifyPassword(h, "secret123") {
		t.Fatalf("expected mismatch for different password")
	}
	if VerifyPassword("not-a-bcrypt-hash", "Secret123") {
		t.Fatalf("malformed hash must not verify")
	}

	h2, _ := HashPassword("Secret123")
	if h2 == h {
		t.Fatalf("hashes should be salted")
	}
}
