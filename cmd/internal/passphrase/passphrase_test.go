package passphrase

import (
	"strings"
	"testing"
)

func TestResolveReadsEnvironmentVariable(t *testing.T) {
	t.Setenv("TEST_KEYSTORE_PASS", "hunter2 ")
	got, err := Resolve("TEST_KEYSTORE_PASS")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// The exact value is used, including surrounding whitespace.
	if got != "hunter2 " {
		t.Fatalf("passphrase = %q, want %q", got, "hunter2 ")
	}
}

func TestResolveRejectsBlankEnvironmentValue(t *testing.T) {
	t.Setenv("TEST_KEYSTORE_PASS", "   ")
	if _, err := Resolve("TEST_KEYSTORE_PASS"); err == nil {
		t.Fatalf("expected error for whitespace-only passphrase")
	}
}

func TestResolveFailsWithoutEnvOrTerminal(t *testing.T) {
	// Stdin is not a terminal under go test, so an unset variable cannot
	// be resolved and the error must name it.
	if _, err := Resolve("TEST_KEYSTORE_PASS_UNSET"); err == nil {
		t.Fatalf("expected error without env value or terminal")
	} else if !strings.Contains(err.Error(), "TEST_KEYSTORE_PASS_UNSET") {
		t.Fatalf("error must name the environment variable: %v", err)
	}
}
