package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/TradeGateHQ/tradegate/internal/config"
	"github.com/TradeGateHQ/tradegate/internal/middleware"
	"github.com/gin-gonic/gin"
)

func TestStatusReportsConfigurationWithoutSecrets(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server: config.ServerConfig{ReadOnly: true},
		Identity: config.IdentityConfig{
			TenantID:     "t",
			ClientID:     "c",
			ClientSecret: "super-secret",
			RedirectURI:  "http://localhost/cb",
		},
		Venue: config.VenueConfig{
			SandboxMode: true,
			Sandbox:     config.VenueCreds{APIKey: "k", APISecret: "s", APIPassphrase: "p"},
		},
	}

	h := NewStatusHandler(cfg, nil)
	router := gin.New()
	router.GET("/status", h.Status)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["identity_configured"] != true {
		t.Fatalf("expected identity_configured true")
	}
	if body["venue_configured"] != true {
		t.Fatalf("expected venue_configured true")
	}
	if body["venue_mode"] != "sandbox" {
		t.Fatalf("expected sandbox mode, got %v", body["venue_mode"])
	}
	if strings.Contains(rec.Body.String(), "super-secret") {
		t.Fatalf("secret material leaked in status response")
	}
}

func TestGatewayAuthGuardsTradingRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := config.AuthConfig{RequireAPIKey: true, APIKey: "gw-key"}
	router := gin.New()
	router.GET("/trading/accounts", middleware.GatewayAuth(cfg), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trading/accounts", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/trading/accounts", nil)
	req.Header.Set(middleware.HeaderGatewayKey, "gw-key")
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d", rec2.Code)
	}
}

func TestReadOnlyBlocksMutations(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(middleware.ReadOnly(true))
	router.POST("/trading/orders/market", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	router.GET("/trading/orders", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trading/orders/market", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for mutation in read-only mode, got %d", rec.Code)
	}

	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/trading/orders", nil))
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 for read in read-only mode, got %d", rec2.Code)
	}
}
