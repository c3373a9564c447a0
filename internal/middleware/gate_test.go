package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/kevinjam/farmkeeper-sub001/pkg/jwtutil"
	"github.com/kevinjam/farmkeeper-sub001/pkg/session"
)

const gateTestKey = "gate-test-signing-key"

func newGateServer(t *testing.T) (*echo.Echo, *jwtutil.Service) {
	t.Helper()
	tokens, err := jwtutil.New(gateTestKey)
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	cookies := session.NewManager(false)

	e := echo.New()
	e.Use(Gate(tokens, cookies))

	ok := func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"user_id": c.Get(UserIDKey),
		})
	}
	e.GET("/login", ok)
	e.GET("/register", ok)
	e.GET("/health", ok)
	e.GET("/onboarding", ok)
	e.GET("/api/farms/:slug", ok)
	e.GET("/:slug/dashboard", ok)

	return e, tokens
}

func request(e *echo.Echo, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: session.TokenCookie, Value: token})
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func expiredToken(t *testing.T, userID uint, slug string) string {
	t.Helper()
	claims := jwtutil.Claims{
		UserID:   userID,
		FarmSlug: slug,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-8 * 24 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(gateTestKey))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestProtectedWithoutTokenRedirectsToLogin(t *testing.T) {
	e, _ := newGateServer(t)

	for _, path := range []string{"/green-acres/dashboard", "/api/farms/green-acres", "/onboarding"} {
		rec := request(e, path, "")
		if rec.Code != http.StatusFound {
			t.Errorf("%s: status = %d, want 302", path, rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != LoginPath {
			t.Errorf("%s: redirect to %q, want %q", path, loc, LoginPath)
		}
	}
}

func TestProtectedWithExpiredTokenRedirectsToLogin(t *testing.T) {
	e, _ := newGateServer(t)

	rec := request(e, "/green-acres/dashboard", expiredToken(t, 1, "green-acres"))
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != LoginPath {
		t.Errorf("redirect to %q, want %q", loc, LoginPath)
	}
}

func TestProtectedWithGarbageTokenRedirectsToLogin(t *testing.T) {
	e, _ := newGateServer(t)

	rec := request(e, "/green-acres/dashboard", "not-a-token")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
}

func TestProtectedWithValidTokenPassesThrough(t *testing.T) {
	e, tokens := newGateServer(t)
	token, _, err := tokens.Issue(1, "green-acres")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rec := request(e, "/green-acres/dashboard", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestPublicOnlyWithValidTokenRedirectsToDashboard(t *testing.T) {
	e, tokens := newGateServer(t)
	token, _, err := tokens.Issue(1, "green-acres")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	for _, path := range []string{"/login", "/register"} {
		rec := request(e, path, token)
		if rec.Code != http.StatusFound {
			t.Errorf("%s: status = %d, want 302", path, rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/green-acres/dashboard" {
			t.Errorf("%s: redirect to %q, want /green-acres/dashboard", path, loc)
		}
	}
}

func TestPublicOnlyWithNoFarmRedirectsToOnboarding(t *testing.T) {
	e, tokens := newGateServer(t)
	token, _, err := tokens.Issue(1, "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rec := request(e, "/login", token)
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != OnboardingPath {
		t.Errorf("redirect to %q, want %q", loc, OnboardingPath)
	}
}

func TestPublicOnlyWithoutTokenPassesThrough(t *testing.T) {
	e, _ := newGateServer(t)

	rec := request(e, "/login", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestPublicOnlyWithInvalidTokenPassesThrough(t *testing.T) {
	e, _ := newGateServer(t)

	rec := request(e, "/login", expiredToken(t, 1, "green-acres"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestNeutralPathPassesThroughEitherWay(t *testing.T) {
	e, tokens := newGateServer(t)
	token, _, err := tokens.Issue(1, "green-acres")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	for _, tok := range []string{"", token, "garbage"} {
		rec := request(e, "/health", tok)
		if rec.Code != http.StatusOK {
			t.Errorf("token %q: status = %d, want 200", tok, rec.Code)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		path string
		want pathClass
	}{
		{"/login", pathPublicOnly},
		{"/register", pathPublicOnly},
		{"/forgot-password", pathPublicOnly},
		{"/green-acres/dashboard", pathProtected},
		{"/green-acres/dashboard/eggs", pathProtected},
		{"/api/farms/green-acres", pathProtected},
		{"/api/profile/change-password", pathProtected},
		{"/onboarding", pathProtected},
		{"/onboarding/farm", pathProtected},
		{"/onboarding-tips", pathNeutral},
		{"/", pathNeutral},
		{"/health", pathNeutral},
		{"/metrics", pathNeutral},
		{"/auth/login", pathNeutral},
		{"/auth/oauth/exchange", pathNeutral},
	}
	for _, tc := range cases {
		if got := classify(tc.path); got != tc.want {
			t.Errorf("classify(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}
