package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	s := Load()
	if s.BuildDir != "build" {
		t.Errorf("BuildDir = %q, want build", s.BuildDir)
	}
	if s.Jobs < 1 || s.Jobs > 8 {
		t.Errorf("Jobs = %d, want 1..8", s.Jobs)
	}
}

func TestLoadInvalidJobs(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"non-numeric", "abc"},
		{"zero", "0"},
		{"negative", "-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HEPHAESTUS_JOBS", tt.value)
			s := Load()
			if s.Jobs < 1 || s.Jobs > 8 {
				t.Errorf("Jobs = %d for HEPHAESTUS_JOBS=%s, want the 1..8 default", s.Jobs, tt.value)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HEPHAESTUS_DEBUG", "true")
	t.Setenv("HEPHAESTUS_JOBS", "3")
	t.Setenv("HEPHAESTUS_BUILD_DIR", "/srv/forge")

	s := Load()
	if !s.Debug {
		t.Error("Debug not picked up from env")
	}
	if s.Jobs != 3 {
		t.Errorf("Jobs = %d, want 3", s.Jobs)
	}
	if s.BuildDir != "/srv/forge" {
		t.Errorf("BuildDir = %q, want /srv/forge", s.BuildDir)
	}
}
