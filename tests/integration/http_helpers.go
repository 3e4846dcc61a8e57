package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/cardbase/authcore/internal/auth"
	"github.com/cardbase/authcore/internal/handlers"
	"github.com/cardbase/authcore/internal/middleware"
	"github.com/cardbase/authcore/internal/repositories"
	"github.com/cardbase/authcore/internal/routes"
	"github.com/cardbase/authcore/internal/services"
	pkglogger "github.com/cardbase/authcore/pkg/logger"
)

// SentMessage is a captured outbound email
type SentMessage struct {
	To       string
	Kind     string
	Code     string
	Password string
}

// CapturingGateway records outbound messages instead of sending them
type CapturingGateway struct {
	mu       sync.Mutex
	Messages []SentMessage
}

func (g *CapturingGateway) record(msg SentMessage) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Messages = append(g.Messages, msg)
}

func (g *CapturingGateway) SendLoginCode(ctx context.Context, address, code string, expiresAt time.Time) error {
	g.record(SentMessage{To: address, Kind: "login_code", Code: code})
	return nil
}

func (g *CapturingGateway) SendTeamMemberLoginCode(ctx context.Context, adminAddress, memberName, code string, expiresAt time.Time) error {
	g.record(SentMessage{To: adminAddress, Kind: "team_member_login_code", Code: code})
	return nil
}

func (g *CapturingGateway) SendPasswordReset(ctx context.Context, address, newPassword string) error {
	g.record(SentMessage{To: address, Kind: "password_reset", Password: newPassword})
	return nil
}

func (g *CapturingGateway) SendProvisionedCredentials(ctx context.Context, address, password string) error {
	g.record(SentMessage{To: address, Kind: "provisioned_credentials", Password: password})
	return nil
}

// LastMessage returns the most recently captured message
func (g *CapturingGateway) LastMessage() *SentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.Messages) == 0 {
		return nil
	}
	msg := g.Messages[len(g.Messages)-1]
	return &msg
}

// LastMessageTo returns the most recent message sent to the given address
func (g *CapturingGateway) LastMessageTo(address string) *SentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.Messages) - 1; i >= 0; i-- {
		if g.Messages[i].To == address {
			msg := g.Messages[i]
			return &msg
		}
	}
	return nil
}

// TestServer wires the full HTTP stack against a test database with a
// capturing delivery gateway in place of SES
type TestServer struct {
	Server       *httptest.Server
	Gateway      *CapturingGateway
	TokenManager *auth.TokenManager
	Identities   *repositories.IdentityRepository
	OTPs         *repositories.OTPRepository
	AuthService  *services.AuthService
}

const testJWTSecret = "integration-secret-0123456789abcdef-000000"

// NewTestServer builds the router the same way cmd/api does, minus SES and
// the background cleaner
func NewTestServer(db *TestDB) *TestServer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	identityRepo := repositories.NewIdentityRepository(db.DB)
	otpRepo := repositories.NewOTPRepository(db.DB, identityRepo)
	resellerRepo := repositories.NewResellerRepository(db.DB)

	tokenManager := auth.NewTokenManager(testJWTSecret, time.Hour)
	gateway := &CapturingGateway{}

	authService := services.NewAuthService(
		identityRepo,
		otpRepo,
		services.NewSessionRegistry(identityRepo),
		tokenManager,
		gateway,
		auth.NewTimingDelay(auth.TimingConfig{}),
		logger,
		pkglogger.NewAuditLogger(logger),
		5*time.Minute,
		8,
	)

	authHandler := handlers.NewAuthHandler(authService)
	accountHandler := handlers.NewAccountHandler(authService, resellerRepo)

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Recoverer)

	// Generous limits keep the per-IP limiter out of the way since every
	// test request arrives from 127.0.0.1
	limits := routes.RateLimits{
		Public:        middleware.RateLimitConfig{RequestsPerMinute: 10000},
		Authenticated: middleware.RateLimitConfig{RequestsPerMinute: 10000},
	}
	routes.RegisterRoutes(router, authHandler, accountHandler, tokenManager, identityRepo, resellerRepo, limits)

	return &TestServer{
		Server:       httptest.NewServer(router),
		Gateway:      gateway,
		TokenManager: tokenManager,
		Identities:   identityRepo,
		OTPs:         otpRepo,
		AuthService:  authService,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	ts.Server.Close()
}

// PostJSON issues a POST with a JSON body and optional bearer token
func (ts *TestServer) PostJSON(path, token string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return http.DefaultClient.Do(req)
}

// GetJSON issues a GET with an optional bearer token
func (ts *TestServer) GetJSON(path, token string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, ts.Server.URL+path, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return http.DefaultClient.Do(req)
}

// DecodeBody decodes a JSON response body into target
func DecodeBody(resp *http.Response, target any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}
