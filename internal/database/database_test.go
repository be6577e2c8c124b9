package database

import "testing"

func TestAppendParam(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"postgres://u:p@localhost:5432/db", "postgres://u:p@localhost:5432/db?sslmode=disable"},
		{"postgresql://u:p@localhost/db?application_name=x", "postgresql://u:p@localhost/db?application_name=x&sslmode=disable"},
		{"host=localhost dbname=db", "host=localhost dbname=db sslmode=disable"},
	}
	for _, tt := range tests {
		if got := appendParam(tt.dsn, "sslmode=disable"); got != tt.want {
			t.Errorf("appendParam(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}
