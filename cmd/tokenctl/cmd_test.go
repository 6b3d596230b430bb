package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rhuss/tutogate/pkg/auth/token"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestIssueThenVerify(t *testing.T) {
	tok, err := execute(t, "issue", "u1", "--secret", "s3cret")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if strings.Count(tok, ".") != 2 {
		t.Fatalf("issued token %q is not a compact JWT", tok)
	}

	subject, err := execute(t, "verify", tok, "--secret", "s3cret")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if subject != "u1" {
		t.Errorf("subject = %q, want u1", subject)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	tok, err := execute(t, "issue", "u1", "--secret", "one")
	if err != nil {
		t.Fatal(err)
	}

	_, err = execute(t, "verify", tok, "--secret", "two")
	if !errors.Is(err, token.ErrSignatureInvalid) {
		t.Fatalf("err = %v, want ErrSignatureInvalid", err)
	}
	if !strings.HasPrefix(err.Error(), "bad signature") {
		t.Errorf("err = %q, want bad signature prefix", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := execute(t, "verify", "not-a-token", "--secret", "s3cret")
	if !errors.Is(err, token.ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestIssueRequiresSubject(t *testing.T) {
	if _, err := execute(t, "issue", "--secret", "s3cret"); err == nil {
		t.Error("expected an argument error")
	}
}

func TestIssuerFlagIsChecked(t *testing.T) {
	tok, err := execute(t, "issue", "u1", "--secret", "s3cret", "--issuer", "tutogate")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "verify", tok, "--secret", "s3cret", "--issuer", "someone-else"); err == nil {
		t.Error("expected issuer mismatch to fail verification")
	}
}
