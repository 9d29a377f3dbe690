package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestIDGenerated(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if seen == "" {
		t.Error("request ID missing from context")
	}
	if rr.Header().Get("X-Request-ID") != seen {
		t.Error("response header does not echo the request ID")
	}
}

func TestRequestIDPreserved(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "caller-id-123")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "caller-id-123" {
		t.Errorf("request ID = %q, want caller-id-123", seen)
	}
}

func TestPatientTokenAuth(t *testing.T) {
	tokens := map[string]string{"tok-asha": "patient-1"}

	var resolved string
	h := PatientTokenAuth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolved = GetPatientID(r.Context())
	}))

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
		wantID     string
	}{
		{"valid token", "Bearer tok-asha", http.StatusOK, "patient-1"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong token", "Bearer nope", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic tok-asha", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved = ""
			req := httptest.NewRequest("GET", "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if resolved != tt.wantID {
				t.Errorf("patient ID = %q, want %q", resolved, tt.wantID)
			}
		})
	}
}

func TestSweepSecret(t *testing.T) {
	h := SweepSecret("hunter2")(okHandler())

	req := httptest.NewRequest("POST", "/sweep", nil)
	req.Header.Set("Authorization", "Bearer hunter2")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("correct secret: status = %d, want 200", rr.Code)
	}

	req = httptest.NewRequest("POST", "/sweep", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret: status = %d, want 401", rr.Code)
	}

	req = httptest.NewRequest("POST", "/sweep", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("no secret: status = %d, want 401", rr.Code)
	}
}

func TestSweepSecretEmptyIsOpen(t *testing.T) {
	h := SweepSecret("")(okHandler())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/sweep", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("unconfigured secret should leave endpoint open, status = %d", rr.Code)
	}
}

func TestCORSPreflights(t *testing.T) {
	h := CORS(okHandler())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("OPTIONS", "/", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("preflight status = %d, want 200", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("missing CORS headers on preflight")
	}
}
