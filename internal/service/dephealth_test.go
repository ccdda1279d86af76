// dephealth_test.go — unit-тесты вспомогательных функций мониторинга зависимостей.
package service

import "testing"

// TestJWKSHealthPath проверяет выбор health path для JWKS endpoint.
func TestJWKSHealthPath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"путь JWKS", "https://auth.example.com/auth/v1/.well-known/jwks.json", "/auth/v1/.well-known/jwks.json"},
		{"без пути", "https://auth.example.com", "/health"},
		{"некорректный URL", "://bad", "/health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := jwksHealthPath(tt.input); got != tt.want {
				t.Errorf("jwksHealthPath(%q) = %q, ожидалось %q", tt.input, got, tt.want)
			}
		})
	}
}
