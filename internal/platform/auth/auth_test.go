package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/example/stream-platform/internal/platform/api"
)

var testSecret = []byte("unit-test-secret-0123456789abcdef")

func signToken(t *testing.T, method jwt.SigningMethod, subject, role string, exp time.Time) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role: role,
	}
	signed, err := jwt.NewWithClaims(method, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func viewerToken(t *testing.T, subject string) string {
	return signToken(t, jwt.SigningMethodHS256, subject, "user", time.Now().Add(time.Hour))
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp api.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error envelope: %v (body %q)", err, rr.Body.String())
	}
	return resp.Error.Code
}

func TestParse(t *testing.T) {
	v := JWTVerifier{Secret: testSecret}

	claims, err := v.Parse(signToken(t, jwt.SigningMethodHS256, "viewer-7", "admin", time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	if claims.Subject != "viewer-7" || claims.Role != "admin" {
		t.Fatalf("claims = %q/%q, want viewer-7/admin", claims.Subject, claims.Role)
	}

	if _, err := v.Parse(signToken(t, jwt.SigningMethodHS256, "viewer-7", "user", time.Now().Add(-time.Minute))); err == nil {
		t.Fatal("expired token accepted")
	}
	if _, err := (JWTVerifier{Secret: []byte("other-secret")}).Parse(viewerToken(t, "viewer-7")); err == nil {
		t.Fatal("token accepted under the wrong secret")
	}
	if _, err := v.Parse("definitely.not.jwt"); err == nil {
		t.Fatal("malformed token accepted")
	}
}

func TestParseRejectsForeignAlgorithm(t *testing.T) {
	// Same secret, different HMAC variant: WithValidMethods must refuse it.
	tok := signToken(t, jwt.SigningMethodHS512, "viewer-7", "user", time.Now().Add(time.Hour))
	if _, err := (JWTVerifier{Secret: testSecret}).Parse(tok); err == nil {
		t.Fatal("HS512 token accepted by an HS256 verifier")
	}
}

func TestParseRejectsTamperedPayload(t *testing.T) {
	parts := strings.Split(viewerToken(t, "viewer-7"), ".")
	if len(parts) != 3 {
		t.Fatal("expected 3 token segments")
	}
	tampered := parts[0] + ".eyJzdWIiOiJzb21lb25lLWVsc2UifQ." + parts[2]
	if _, err := (JWTVerifier{Secret: testSecret}).Parse(tampered); err == nil {
		t.Fatal("tampered token accepted")
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		token  string
		ok     bool
	}{
		{"missing", "", "", false},
		{"bearer", "Bearer abc.def.ghi", "abc.def.ghi", true},
		{"case insensitive scheme", "bearer abc", "abc", true},
		{"basic scheme", "Basic dXNlcjpwYXNz", "", false},
		{"scheme without token", "Bearer ", "", false},
		{"bare token", "abc.def.ghi", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			token, ok := bearerToken(r)
			if ok != tc.ok || token != tc.token {
				t.Fatalf("bearerToken = %q/%v, want %q/%v", token, ok, tc.token, tc.ok)
			}
		})
	}
}

func requireUser(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	RequireUser(JWTVerifier{Secret: testSecret})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := UserIDFromContext(r.Context())
		_, _ = w.Write([]byte(uid))
	})).ServeHTTP(rr, req)
	return rr
}

func TestRequireUserPassesSubjectThrough(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/history", nil)
	req.Header.Set("Authorization", "Bearer "+viewerToken(t, "viewer-42"))

	rr := requireUser(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if rr.Body.String() != "viewer-42" {
		t.Fatalf("handler saw user %q, want viewer-42", rr.Body.String())
	}
}

func TestRequireUserMissingToken(t *testing.T) {
	rr := requireUser(httptest.NewRequest(http.MethodGet, "/v1/history", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if code := errorCode(t, rr); code != "AUTH_REQUIRED" {
		t.Fatalf("error code = %q, want AUTH_REQUIRED", code)
	}
}

func TestRequireUserBadToken(t *testing.T) {
	for name, token := range map[string]string{
		"garbage":       "invalid.token.here",
		"expired":       signToken(t, jwt.SigningMethodHS256, "viewer-1", "user", time.Now().Add(-time.Hour)),
		"empty subject": signToken(t, jwt.SigningMethodHS256, "", "user", time.Now().Add(time.Hour)),
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/history", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rr := requireUser(req)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rr.Code)
			}
			if code := errorCode(t, rr); code != "AUTH_INVALID" {
				t.Fatalf("error code = %q, want AUTH_INVALID", code)
			}
		})
	}
}

func TestRequireUserInjectsRole(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/history/u1", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.SigningMethodHS256, "staff-1", "admin", time.Now().Add(time.Hour)))

	var role string
	rr := httptest.NewRecorder()
	RequireUser(JWTVerifier{Secret: testSecret})(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		role, _ = RoleFromContext(r.Context())
	})).ServeHTTP(rr, req)

	if role != "admin" {
		t.Fatalf("role in context = %q, want admin", role)
	}
}

func requireAdmin(ctx context.Context) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/history/u1", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rr, req)
	return rr
}

func TestRequireAdmin(t *testing.T) {
	withRole := func(role string) context.Context {
		return context.WithValue(context.Background(), ctxKeyRole{}, role)
	}

	if rr := requireAdmin(withRole("admin")); rr.Code != http.StatusOK {
		t.Fatalf("admin role: status = %d, want 200", rr.Code)
	}
	if rr := requireAdmin(withRole("ADMIN")); rr.Code != http.StatusOK {
		t.Fatalf("role match should be case-insensitive, got %d", rr.Code)
	}

	rr := requireAdmin(withRole("user"))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("user role: status = %d, want 403", rr.Code)
	}
	if code := errorCode(t, rr); code != "ADMIN_ONLY" {
		t.Fatalf("error code = %q, want ADMIN_ONLY", code)
	}

	if rr := requireAdmin(context.Background()); rr.Code != http.StatusForbidden {
		t.Fatalf("no role: status = %d, want 403", rr.Code)
	}
}
