package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractor(t *testing.T) {
	tests := []struct {
		name   string
		cookie *http.Cookie
		header string
		want   string
		wantOK bool
	}{
		{"nothing", nil, "", "", false},
		{"cookie only", &http.Cookie{Name: "token", Value: "c"}, "", "c", true},
		{"header only", nil, "Bearer h", "h", true},
		{"cookie wins", &http.Cookie{Name: "token", Value: "c"}, "Bearer h", "c", true},
		{"empty cookie falls back", &http.Cookie{Name: "token", Value: ""}, "Bearer h", "h", true},
		{"scheme case-insensitive", nil, "bearer h", "h", true},
		{"surrounding space", nil, "Bearer   h  ", "h", true},
		{"bearer without token", nil, "Bearer ", "", false},
		{"bare scheme", nil, "Bearer", "", false},
		{"basic scheme", nil, "Basic abc", "", false},
		{"other cookie ignored", &http.Cookie{Name: "session", Value: "s"}, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, ok := Extractor{}.Extract(req)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Extract = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestExtractor_CustomCookieName(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: "default"})
	req.AddCookie(&http.Cookie{Name: "tg_session", Value: "custom"})

	got, ok := Extractor{CookieName: "tg_session"}.Extract(req)
	if !ok || got != "custom" {
		t.Errorf("Extract = (%q, %v), want (custom, true)", got, ok)
	}
}
