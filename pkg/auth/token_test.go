package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/zimmerhq/zimmer-admin-api/pkg/config"
	"github.com/zimmerhq/zimmer-admin-api/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "zimmer-admin",
		ExpirationMinutes: 15,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	adminID := uuid.New()

	signed, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		AdminID: adminID,
		Role:    enums.AdminRoleAdmin,
	})
	if err != nil {
		t.Fatalf("MintAccessToken error: %v", err)
	}

	claims, err := ParseAccessToken(cfg, signed)
	if err != nil {
		t.Fatalf("ParseAccessToken error: %v", err)
	}
	if claims.AdminID != adminID {
		t.Fatalf("admin id mismatch: %s", claims.AdminID)
	}
	if claims.Role != enums.AdminRoleAdmin {
		t.Fatalf("role mismatch: %s", claims.Role)
	}
	if claims.ID == "" {
		t.Fatal("jti should be assigned when omitted")
	}
}

func TestMintAccessTokenRejectsInvalidRole(t *testing.T) {
	if _, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{
		AdminID: uuid.New(),
		Role:    enums.AdminRole("superuser"),
	}); err == nil {
		t.Fatal("unknown role should fail")
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	signed, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), AccessTokenPayload{
		AdminID: uuid.New(),
		Role:    enums.AdminRoleManager,
	})
	if err != nil {
		t.Fatalf("MintAccessToken error: %v", err)
	}

	if _, err := ParseAccessToken(cfg, signed); err == nil {
		t.Fatal("expired token should not parse")
	}
	if _, err := ParseAccessTokenAllowExpired(cfg, signed); err != nil {
		t.Fatalf("expired token should still parse with AllowExpired: %v", err)
	}
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	cfg := testJWTConfig()
	signed, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		AdminID: uuid.New(),
		Role:    enums.AdminRoleAdmin,
	})
	if err != nil {
		t.Fatalf("MintAccessToken error: %v", err)
	}

	other := cfg
	other.Secret = "different"
	if _, err := ParseAccessToken(other, signed); err == nil {
		t.Fatal("token signed with a different secret should not parse")
	}
}
