package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"powersense/internal/models"
	"powersense/internal/repository"

	"github.com/golang-jwt/jwt/v5"
)

const testSigningKey = "test-signing-key"

// mockAuthRepo is a lightweight in-test mock for repository.Authorization.
type mockAuthRepo struct {
	CreateFn         func(email, hash string) (int, error)
	GetByEmailFn     func(email string) (*models.User, error)
	GetByIDFn        func(id int) (*models.User, error)
	UpdatePasswordFn func(id int, hash string) error

	createCalls []struct {
		email string
		hash  string
	}
	getCalls    []string
	updatedHash string
}

func (m *mockAuthRepo) Create(email, hash string) (int, error) {
	m.createCalls = append(m.createCalls, struct {
		email string
		hash  string
	}{email: email, hash: hash})
	return m.CreateFn(email, hash)
}

func (m *mockAuthRepo) GetByEmail(email string) (*models.User, error) {
	m.getCalls = append(m.getCalls, email)
	return m.GetByEmailFn(email)
}

func (m *mockAuthRepo) GetByID(id int) (*models.User, error) {
	return m.GetByIDFn(id)
}

func (m *mockAuthRepo) UpdatePassword(id int, hash string) error {
	m.updatedHash = hash
	if m.UpdatePasswordFn == nil {
		return nil
	}
	return m.UpdatePasswordFn(id, hash)
}

// fakeProfileRepo keeps profiles in a map.
type fakeProfileRepo struct {
	profiles map[int]models.UserProfile
	saveErr  error
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: map[int]models.UserProfile{}}
}

func (f *fakeProfileRepo) Get(_ context.Context, userID int) (*models.UserProfile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeProfileRepo) Save(_ context.Context, p models.UserProfile) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.profiles[p.UID] = p
	return nil
}

func (f *fakeProfileRepo) UpdateImage(_ context.Context, userID int, url string) error {
	p, ok := f.profiles[userID]
	if !ok {
		return repository.ErrNotFound
	}
	p.ProfileImageURL = url
	f.profiles[userID] = p
	return nil
}

func newTestAuthService(repo *mockAuthRepo, profiles repository.ProfileRepo) *AuthService {
	return NewAuthService(repo, profiles, testSigningKey, time.Hour)
}

// --- SignUp tests ---

func TestAuthService_SignUp_SuccessHashesPasswordAndCreatesProfile(t *testing.T) {
	mock := &mockAuthRepo{
		CreateFn: func(email, hash string) (int, error) {
			return 42, nil
		},
	}
	profiles := newFakeProfileRepo()
	svc := newTestAuthService(mock, profiles)

	id, err := svc.SignUp("  Alice@Example.com ", "s3cr3t-pass", "Alice Smith")
	if err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	if id != 42 {
		t.Fatalf("expected id 42, got %d", id)
	}

	if len(mock.createCalls) != 1 {
		t.Fatalf("expected 1 Create call, got %d", len(mock.createCalls))
	}
	call := mock.createCalls[0]
	if call.email != "alice@example.com" {
		t.Errorf("expected normalized email, got %q", call.email)
	}
	if call.hash == "s3cr3t-pass" {
		t.Errorf("expected hashed password not equal to raw password")
	}
	if err := verifyPassword(call.hash, "s3cr3t-pass"); err != nil {
		t.Errorf("stored hash does not verify with original password: %v", err)
	}

	p, ok := profiles.profiles[42]
	if !ok {
		t.Fatalf("expected profile to be created")
	}
	if p.FullName != "Alice Smith" || p.Email != "alice@example.com" {
		t.Errorf("unexpected profile: %+v", p)
	}
}

func TestAuthService_SignUp_WeakPassword(t *testing.T) {
	mock := &mockAuthRepo{
		CreateFn: func(email, hash string) (int, error) {
			t.Fatal("Create should not be called for a weak password")
			return 0, nil
		},
	}
	svc := newTestAuthService(mock, nil)

	for _, pw := range []string{"", "   ", "short"} {
		_, err := svc.SignUp("bob@example.com", pw, "Bob")
		if !errors.Is(err, ErrWeakPassword) {
			t.Fatalf("password %q: expected ErrWeakPassword, got %v", pw, err)
		}
	}
}

func TestAuthService_SignUp_InvalidEmail(t *testing.T) {
	svc := newTestAuthService(&mockAuthRepo{}, nil)

	_, err := svc.SignUp("not-an-email", "password123", "")
	if !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestAuthService_SignUp_RepoError(t *testing.T) {
	mock := &mockAuthRepo{
		CreateFn: func(email, hash string) (int, error) {
			return 0, errors.New("db down")
		},
	}
	svc := newTestAuthService(mock, newFakeProfileRepo())

	_, err := svc.SignUp("carl@example.com", "pass12345", "Carl")
	if err == nil {
		t.Fatalf("expected repo error, got nil")
	}
}

// --- GenerateToken tests ---

func TestAuthService_GenerateToken_Success(t *testing.T) {
	hash, err := hashPassword("letmein123")
	if err != nil {
		t.Fatalf("hashPassword failed: %v", err)
	}
	user := &models.User{ID: 7, Email: "diana@example.com", PasswordHash: hash}

	mock := &mockAuthRepo{
		GetByEmailFn: func(email string) (*models.User, error) {
			if email != "diana@example.com" {
				t.Fatalf("expected email 'diana@example.com', got %q", email)
			}
			return user, nil
		},
	}
	svc := newTestAuthService(mock, nil)

	token, err := svc.GenerateToken("Diana@example.com", "letmein123")
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}

	uid, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	if uid != 7 {
		t.Fatalf("expected user id 7 from token, got %d", uid)
	}

	if len(mock.getCalls) != 1 {
		t.Fatalf("expected 1 GetByEmail call, got %d", len(mock.getCalls))
	}
}

func TestAuthService_GenerateToken_UserNotFound(t *testing.T) {
	mock := &mockAuthRepo{
		GetByEmailFn: func(email string) (*models.User, error) {
			return nil, nil
		},
	}
	svc := newTestAuthService(mock, nil)

	_, err := svc.GenerateToken("ghost@example.com", "pw")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got: %v", err)
	}
}

func TestAuthService_GenerateToken_InvalidPassword(t *testing.T) {
	correctHash, err := hashPassword("correct-horse")
	if err != nil {
		t.Fatalf("hashPassword failed: %v", err)
	}
	mock := &mockAuthRepo{
		GetByEmailFn: func(email string) (*models.User, error) {
			return &models.User{ID: 1, Email: "eve@example.com", PasswordHash: correctHash}, nil
		},
	}
	svc := newTestAuthService(mock, nil)

	_, err = svc.GenerateToken("eve@example.com", "wrong")
	if !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got: %v", err)
	}
}

func TestAuthService_GenerateToken_RepoError(t *testing.T) {
	mock := &mockAuthRepo{
		GetByEmailFn: func(email string) (*models.User, error) {
			return nil, errors.New("query failed")
		},
	}
	svc := newTestAuthService(mock, nil)

	_, err := svc.GenerateToken("john@example.com", "pw")
	if err == nil {
		t.Fatalf("expected repo error, got nil")
	}
}

// --- ChangePassword tests ---

func TestAuthService_ChangePassword(t *testing.T) {
	hash, err := hashPassword("old-password")
	if err != nil {
		t.Fatalf("hashPassword failed: %v", err)
	}
	mock := &mockAuthRepo{
		GetByIDFn: func(id int) (*models.User, error) {
			return &models.User{ID: id, Email: "f@example.com", PasswordHash: hash}, nil
		},
	}
	svc := newTestAuthService(mock, nil)

	if err := svc.ChangePassword(3, "wrong-password", "new-password"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
	if mock.updatedHash != "" {
		t.Fatalf("password must not change when current password is wrong")
	}

	if err := svc.ChangePassword(3, "old-password", "tiny"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	if err := svc.ChangePassword(3, "old-password", "new-password"); err != nil {
		t.Fatalf("ChangePassword returned error: %v", err)
	}
	if err := verifyPassword(mock.updatedHash, "new-password"); err != nil {
		t.Fatalf("stored hash does not verify with the new password: %v", err)
	}
}

func TestAuthService_ChangePassword_UnknownUser(t *testing.T) {
	mock := &mockAuthRepo{
		GetByIDFn: func(id int) (*models.User, error) { return nil, nil },
	}
	svc := newTestAuthService(mock, nil)

	if err := svc.ChangePassword(404, "a", "b"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

// --- ParseToken tests ---

func TestAuthService_ParseToken_Success(t *testing.T) {
	svc := newTestAuthService(&mockAuthRepo{}, nil)
	token, err := svc.issueToken(99)
	if err != nil {
		t.Fatalf("issueToken failed: %v", err)
	}

	uid, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken returned error: %v", err)
	}
	if uid != 99 {
		t.Fatalf("expected user id 99, got %d", uid)
	}
}

func TestAuthService_ParseToken_Malformed(t *testing.T) {
	svc := newTestAuthService(&mockAuthRepo{}, nil)
	_, err := svc.ParseToken("not-a-jwt")
	if err == nil {
		t.Fatalf("expected error for malformed token")
	}
}

func TestAuthService_ParseToken_InvalidSignature(t *testing.T) {
	svc := newTestAuthService(&mockAuthRepo{}, nil)

	now := time.Now()
	tk := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: 5,
	})
	badToken, err := tk.SignedString([]byte("different-key"))
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}

	_, err = svc.ParseToken(badToken)
	if err == nil {
		t.Fatalf("expected signature verification error")
	}
}

func TestAuthService_ParseToken_Expired(t *testing.T) {
	svc := newTestAuthService(&mockAuthRepo{}, nil)

	past := time.Now().Add(-2 * time.Hour)
	tk := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(past),
			IssuedAt:  jwt.NewNumericDate(past.Add(-time.Minute)),
		},
		UserID: 11,
	})
	expiredToken, err := tk.SignedString([]byte(testSigningKey))
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}

	_, err = svc.ParseToken(expiredToken)
	if err == nil {
		t.Fatalf("expected error for expired token")
	}
}

func TestAuthService_ParseToken_UnexpectedAlg(t *testing.T) {
	svc := newTestAuthService(&mockAuthRepo{}, nil)

	now := time.Now()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey failed: %v", err)
	}

	tk := jwt.NewWithClaims(jwt.SigningMethodRS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: 12,
	})

	tokenStr, err := tk.SignedString(privateKey)
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}

	_, err = svc.ParseToken(tokenStr)
	if err == nil {
		t.Fatalf("expected error due to unexpected signing method")
	}
}
