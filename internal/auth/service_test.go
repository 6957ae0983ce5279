package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/zimmerhq/zimmer-admin-api/pkg/auth"
	"github.com/zimmerhq/zimmer-admin-api/pkg/auth/session"
	"github.com/zimmerhq/zimmer-admin-api/pkg/config"
	"github.com/zimmerhq/zimmer-admin-api/pkg/db/models"
	"github.com/zimmerhq/zimmer-admin-api/pkg/enums"
	pkgerrors "github.com/zimmerhq/zimmer-admin-api/pkg/errors"
	"github.com/zimmerhq/zimmer-admin-api/pkg/security"
)

var testJWTConfig = config.JWTConfig{
	Secret:            "test-secret",
	Issuer:            "zimmer-admin-test",
	ExpirationMinutes: 15,
}

type fakeAdminRepo struct {
	byEmail map[string]*models.AdminUser
	byID    map[uuid.UUID]*models.AdminUser
}

func newFakeAdminRepo(admins ...*models.AdminUser) *fakeAdminRepo {
	f := &fakeAdminRepo{byEmail: map[string]*models.AdminUser{}, byID: map[uuid.UUID]*models.AdminUser{}}
	for _, admin := range admins {
		f.byEmail[admin.Email] = admin
		f.byID[admin.ID] = admin
	}
	return f
}

func (f *fakeAdminRepo) Create(ctx context.Context, admin *models.AdminUser) error {
	if _, ok := f.byEmail[admin.Email]; ok {
		return duplicateEmailError{}
	}
	admin.CreatedAt = time.Now().UTC()
	f.byEmail[admin.Email] = admin
	f.byID[admin.ID] = admin
	return nil
}

func (f *fakeAdminRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.AdminUser, error) {
	if admin, ok := f.byID[id]; ok {
		return admin, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAdminRepo) FindByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	if admin, ok := f.byEmail[email]; ok {
		return admin, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAdminRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	admin, ok := f.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	admin.LastLoginAt = &at
	return nil
}

type duplicateEmailError struct{}

func (duplicateEmailError) Error() string {
	return `duplicate key value violates unique constraint "admin_users_email_key"`
}

type fakeSessionManager struct {
	sessions map[string]string
}

func newFakeSessionManager() *fakeSessionManager {
	return &fakeSessionManager{sessions: map[string]string{}}
}

func (f *fakeSessionManager) Generate(ctx context.Context, accessID string) (string, error) {
	token := "refresh-" + accessID
	f.sessions[accessID] = token
	return token, nil
}

func (f *fakeSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	stored, ok := f.sessions[oldAccessID]
	if !ok || stored != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(f.sessions, oldAccessID)
	newID := session.NewAccessID()
	token, _ := f.Generate(ctx, newID)
	return newID, token, nil
}

func (f *fakeSessionManager) Revoke(ctx context.Context, accessID string) error {
	delete(f.sessions, accessID)
	return nil
}

func seedAdmin(t *testing.T, password string) *models.AdminUser {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return &models.AdminUser{
		ID:           uuid.New(),
		Name:         "Operator",
		Email:        "ops@zimmer.app",
		PasswordHash: hash,
		Role:         enums.AdminRoleAdmin,
		IsActive:     true,
	}
}

func newTestService(t *testing.T, repo *fakeAdminRepo, sessions *fakeSessionManager) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		AdminRepo:      repo,
		SessionManager: sessions,
		JWTConfig:      testJWTConfig,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestLoginSuccess(t *testing.T) {
	admin := seedAdmin(t, "correct horse battery")
	svc := newTestService(t, newFakeAdminRepo(admin), newFakeSessionManager())

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "Ops@Zimmer.app", Password: "correct horse battery"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("token pair missing")
	}
	if resp.Admin == nil || resp.Admin.ID != admin.ID {
		t.Fatalf("admin = %+v, want %s", resp.Admin, admin.ID)
	}
	if admin.LastLoginAt == nil {
		t.Fatal("last login not recorded")
	}

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig, resp.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.AdminID != admin.ID || claims.Role != enums.AdminRoleAdmin {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	admin := seedAdmin(t, "correct horse battery")
	svc := newTestService(t, newFakeAdminRepo(admin), newFakeSessionManager())

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", admin.Email, "wrong"},
		{"unknown email", "nobody@zimmer.app", "correct horse battery"},
		{"empty email", "", "correct horse battery"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), LoginRequest{Email: tc.email, Password: tc.password})
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
				t.Fatalf("err = %v, want %s", err, pkgerrors.CodeUnauthorized)
			}
			if typed.Message() != invalidCredentialsMessage {
				t.Fatalf("message = %q, want uniform %q", typed.Message(), invalidCredentialsMessage)
			}
		})
	}
}

func TestLoginRejectsDeactivatedAccount(t *testing.T) {
	admin := seedAdmin(t, "correct horse battery")
	admin.IsActive = false
	svc := newTestService(t, newFakeAdminRepo(admin), newFakeSessionManager())

	_, err := svc.Login(context.Background(), LoginRequest{Email: admin.Email, Password: "correct horse battery"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("err = %v, want %s", err, pkgerrors.CodeUnauthorized)
	}
}

func TestRegisterHashesAndNormalizes(t *testing.T) {
	repo := newFakeAdminRepo()
	svc := newTestService(t, repo, newFakeSessionManager())

	dto, err := svc.Register(context.Background(), RegisterRequest{
		Name:     "  New Manager ",
		Email:    "Manager@Zimmer.APP",
		Password: "a long enough password",
		Role:     "manager",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if dto.Email != "manager@zimmer.app" || dto.Name != "New Manager" {
		t.Fatalf("dto = %+v", dto)
	}
	if dto.Role != enums.AdminRoleManager {
		t.Fatalf("role = %s, want manager", dto.Role)
	}

	stored := repo.byEmail["manager@zimmer.app"]
	if stored.PasswordHash == "a long enough password" {
		t.Fatal("password stored in plain text")
	}
	ok, err := security.VerifyPassword("a long enough password", stored.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("VerifyPassword = %v, %v", ok, err)
	}

	_, err = svc.Register(context.Background(), RegisterRequest{
		Name: "Dup", Email: "manager@zimmer.app", Password: "another long password", Role: "manager",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("err = %v, want %s", err, pkgerrors.CodeConflict)
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	admin := seedAdmin(t, "correct horse battery")
	sessions := newFakeSessionManager()
	svc := newTestService(t, newFakeAdminRepo(admin), sessions)

	login, err := svc.Login(context.Background(), LoginRequest{Email: admin.Email, Password: "correct horse battery"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	refreshed, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.AccessToken == "" || refreshed.RefreshToken == login.RefreshToken {
		t.Fatal("refresh did not rotate the pair")
	}

	// The old pair is single use.
	_, err = svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("err = %v, want %s", err, pkgerrors.CodeUnauthorized)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	admin := seedAdmin(t, "correct horse battery")
	sessions := newFakeSessionManager()
	svc := newTestService(t, newFakeAdminRepo(admin), sessions)

	login, err := svc.Login(context.Background(), LoginRequest{Email: admin.Email, Password: "correct horse battery"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWTConfig, login.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if err := svc.Logout(context.Background(), claims.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, ok := sessions.sessions[claims.ID]; ok {
		t.Fatal("session still present after logout")
	}
}
