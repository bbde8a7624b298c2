package httpapi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"modaloja/backend/internal/domain"
)

type AuthManager struct {
	mu        sync.RWMutex
	secret    []byte
	tokenTTL  time.Duration
	userStore UserStore
	users     map[string]credential
}

type UserStore interface {
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
}

type credential struct {
	password    string
	role        string
	maxDiscount decimal.Decimal
	active      bool
}

type posCustomClaims struct {
	jwtlib.RegisteredClaims
	Role        string `json:"role"`
	MaxDiscount string `json:"max_discount"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, userStore UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}

	manager := &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		userStore: userStore,
		users:     make(map[string]credential),
	}
	// Startup operation, no request context exists yet.
	manager.refreshUsers(context.Background())
	return manager
}

// refreshUsers reloads credentials from the store so cashiers created by
// another process (or the admin endpoint) can log in without a restart.
func (a *AuthManager) refreshUsers(ctx context.Context) {
	if a.userStore == nil {
		return
	}
	users, err := a.userStore.ListUsers(ctx)
	if err != nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, user := range users {
		a.users[user.Username] = credential{
			password:    user.Password,
			role:        user.Role,
			maxDiscount: user.MaxDiscount,
			active:      user.Active,
		}
	}
}

func (a *AuthManager) Login(req domain.LoginRequest) (domain.LoginResponse, error) {
	refreshCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	a.refreshUsers(refreshCtx)
	cancel()

	username := strings.ToLower(strings.TrimSpace(req.Username))
	a.mu.RLock()
	cred, ok := a.users[username]
	a.mu.RUnlock()
	if !ok {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(cred.password), []byte(req.Password)) != nil {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}
	if !cred.active {
		return domain.LoginResponse{}, errors.New("account is inactive")
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(username, cred, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        cred.role,
		MaxDiscount: cred.maxDiscount,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &posCustomClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	maxDiscount, err := decimal.NewFromString(claims.MaxDiscount)
	if err != nil {
		maxDiscount = decimal.Zero
	}
	return domain.Actor{Username: sub, Role: claims.Role, MaxDiscount: maxDiscount}, nil
}

func (a *AuthManager) sign(username string, cred credential, expiresAt time.Time) (string, error) {
	claims := posCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "modaloja",
		},
		Role:        cred.role,
		MaxDiscount: cred.maxDiscount.String(),
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}
