package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeDotenv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDotenv(t *testing.T) {
	path := writeDotenv(t, `# who edits
PM_ACTOR=alice

# Quoted values
PM_WEEK_START="sunday"
PM_SINGLE='single-quoted'

# Spaces around = and shell export prefix
PM_SPACED = spaced_value
export PM_EXPORTED=yes
`)

	for _, k := range []string{"PM_ACTOR", "PM_WEEK_START", "PM_SINGLE", "PM_SPACED", "PM_EXPORTED"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	if err := LoadDotenv(path); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		key, want string
	}{
		{"PM_ACTOR", "alice"},
		{"PM_WEEK_START", "sunday"},
		{"PM_SINGLE", "single-quoted"},
		{"PM_SPACED", "spaced_value"},
		{"PM_EXPORTED", "yes"},
	}
	for _, tt := range tests {
		if got := os.Getenv(tt.key); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestLoadDotenvNoOverride(t *testing.T) {
	path := writeDotenv(t, `PM_EXISTING=new-value`)
	t.Setenv("PM_EXISTING", "original")

	if err := LoadDotenv(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("PM_EXISTING"); got != "original" {
		t.Errorf("expected existing var to be preserved, got %q", got)
	}
}

func TestReloadDotenvOverrides(t *testing.T) {
	path := writeDotenv(t, `PM_EXISTING=new-value`)
	t.Setenv("PM_EXISTING", "original")

	if err := ReloadDotenv(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("PM_EXISTING"); got != "new-value" {
		t.Errorf("got %q, want new-value", got)
	}
}

func TestLoadDotenvMissingFile(t *testing.T) {
	if err := LoadDotenv("/nonexistent/.env"); err != nil {
		t.Errorf("missing file should be silently ignored, got: %v", err)
	}
}
