package config

import (
	"fmt"
	"strings"
	"testing"

	yaml "gopkg.in/yaml.v3"
)

func TestSecretString_String(t *testing.T) {
	tests := []struct {
		name  string
		input SecretString
		want  string
	}{
		{"empty string", "", ""},
		{"short string", "x", secretPlaceholder},
		{"long string", "this-is-a-very-long-secret-that-should-still-be-hidden", secretPlaceholder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.input.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if got := fmt.Sprintf("%v", tt.input); got != tt.want {
				t.Errorf("Sprintf(%%v) = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSecretString_MarshalYAML(t *testing.T) {
	tests := []struct {
		name  string
		input SecretString
		want  any
	}{
		{"empty string", "", nil},
		{"short string", "a", secretPlaceholder},
		{"long string", "super-secret-token-12345678901234567890", secretPlaceholder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.input.MarshalYAML()
			if err != nil {
				t.Fatalf("MarshalYAML() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("MarshalYAML() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSecretString_YAML_Integration(t *testing.T) {
	type creds struct {
		Username string       `yaml:"username"`
		Password SecretString `yaml:"password"`
		Token    SecretString `yaml:"token"`
	}

	in := creds{
		Username: "alice",
		Password: "pass123",
		Token:    "",
	}

	got, err := yaml.Marshal(in)
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}

	want := "username: alice\npassword: <secret>\ntoken: null\n"
	if string(got) != want {
		t.Errorf("yaml.Marshal() = %s, want %s", got, want)
	}

	if strings.Contains(string(got), "pass123") {
		t.Error("Marshaled YAML contains actual password")
	}
}

func TestSecretString_NoLeakage(t *testing.T) {
	secret := SecretString("super-secret-password-12345")

	// fmt and yaml both go through the masking paths
	if s := fmt.Sprint(secret); strings.Contains(s, "super-secret") {
		t.Error("Secret leaked when formatted")
	}

	yamlBytes, err := yaml.Marshal(secret)
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}
	if strings.Contains(string(yamlBytes), "super-secret") {
		t.Error("Secret leaked in YAML marshaling")
	}
}

func TestSecretString_TypeConversion(t *testing.T) {
	original := "my-secret"
	secret := SecretString(original)

	// the cleartext value stays reachable for the code that needs it
	if string(secret) != original {
		t.Errorf("string(secret) = %s, want %s", string(secret), original)
	}

	if fmt.Sprint(secret) == original {
		t.Error("Secret visible when formatted")
	}
}
