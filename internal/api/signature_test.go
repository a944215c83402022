package api

import "testing"

func TestVerifySignatureAcceptsSignedBody(t *testing.T) {
	body := []byte(`{"ref":"refs/heads/main"}`)
	signature := SignBody(body, "hunter2")

	if !VerifySignature(body, "hunter2", signature) {
		t.Fatalf("valid signature rejected")
	}
}

func TestVerifySignatureAcceptsBareHex(t *testing.T) {
	body := []byte(`{}`)
	signature := SignBody(body, "hunter2")

	bare := signature[len("sha256="):]
	if !VerifySignature(body, "hunter2", bare) {
		t.Fatalf("signature without prefix rejected")
	}
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	body := []byte(`{}`)
	signature := SignBody(body, "hunter2")

	if VerifySignature(body, "other", signature) {
		t.Fatalf("signature with wrong secret accepted")
	}
}

func TestVerifySignatureRejectsTamperedBody(t *testing.T) {
	signature := SignBody([]byte(`{"a":1}`), "hunter2")

	if VerifySignature([]byte(`{"a":2}`), "hunter2", signature) {
		t.Fatalf("tampered body accepted")
	}
}

func TestVerifySignatureRejectsGarbage(t *testing.T) {
	if VerifySignature([]byte(`{}`), "hunter2", "sha256=not-hex") {
		t.Fatalf("non-hex signature accepted")
	}
	if VerifySignature([]byte(`{}`), "hunter2", "") {
		t.Fatalf("empty signature accepted")
	}
	if VerifySignature([]byte(`{}`), "", SignBody([]byte(`{}`), "")) {
		t.Fatalf("empty secret accepted")
	}
}
