package secrets

import "testing"

func TestVersionName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short name", "supabase-jwt-secret", "projects/p1/secrets/supabase-jwt-secret/versions/latest"},
		{"qualified secret", "projects/other/secrets/jwt", "projects/other/secrets/jwt/versions/latest"},
		{"pinned version", "projects/other/secrets/jwt/versions/3", "projects/other/secrets/jwt/versions/3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VersionName("p1", tt.in); got != tt.want {
				t.Errorf("VersionName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
