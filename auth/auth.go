package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"techhome/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserNotFound       = errors.New("user not found")
)

const (
	accessTokenTTL  = 24 * time.Hour
	refreshTokenTTL = 30 * 24 * time.Hour
)

// TokenPair is issued on register and login. The access token is a signed
// JWT; the refresh token is an opaque value stored in redis with a TTL.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type AuthModule struct {
	db        *pgxpool.Pool
	redis     *redis.Client
	JWTSecret string
}

func NewAuthModule(db *pgxpool.Pool, redisClient *redis.Client, jwtSecret string) *AuthModule {
	return &AuthModule{
		db:        db,
		redis:     redisClient,
		JWTSecret: jwtSecret,
	}
}

func generateSecureToken(length int) (string, error) {
	randomBytes := make([]byte, length)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(randomBytes), nil
}

func (a *AuthModule) generateJWT(userID int) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(accessTokenTTL).Unix(),
		"iat":     time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.JWTSecret))
}

func refreshKey(token string) string { return "refresh:" + token }

func userTokensKey(userID int) string { return fmt.Sprintf("user_tokens:%d", userID) }

func (a *AuthModule) issueTokens(ctx context.Context, userID int) (*TokenPair, error) {
	access, err := a.generateJWT(userID)
	if err != nil {
		return nil, err
	}

	refresh, err := generateSecureToken(32)
	if err != nil {
		return nil, err
	}
	if err := a.redis.Set(ctx, refreshKey(refresh), userID, refreshTokenTTL).Err(); err != nil {
		return nil, err
	}
	// Track tokens per user so logout-all can revoke every session.
	if err := a.redis.SAdd(ctx, userTokensKey(userID), refresh).Err(); err != nil {
		return nil, err
	}
	a.redis.Expire(ctx, userTokensKey(userID), refreshTokenTTL)

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Register creates a user and issues a token pair. Input validation
// (username shape, password strength, email syntax) is the caller's job via
// the Validate helpers; this checks uniqueness only.
func (a *AuthModule) Register(ctx context.Context, username, email, password string, firstName, lastName *string) (int, *TokenPair, error) {
	var exists bool
	if err := a.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)", username).Scan(&exists); err != nil {
		return 0, nil, err
	}
	if exists {
		return 0, nil, ErrUsernameTaken
	}
	if err := a.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)", email).Scan(&exists); err != nil {
		return 0, nil, err
	}
	if exists {
		return 0, nil, ErrEmailTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, nil, err
	}

	var userID int
	err = a.db.QueryRow(ctx,
		"INSERT INTO users (username, email, password, first_name, last_name) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		username, email, string(hashedPassword), firstName, lastName,
	).Scan(&userID)
	if err != nil {
		return 0, nil, err
	}

	tokens, err := a.issueTokens(ctx, userID)
	if err != nil {
		return 0, nil, err
	}

	a.updateLastLogin(ctx, userID)
	return userID, tokens, nil
}

// Login authenticates by username or email and issues a token pair.
func (a *AuthModule) Login(ctx context.Context, usernameOrEmail, password string) (*models.User, *TokenPair, error) {
	var user models.User
	err := a.db.QueryRow(ctx,
		"SELECT id, username, email, password, is_active FROM users WHERE username = $1 OR email = $1",
		usernameOrEmail,
	).Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, nil, ErrAccountDisabled
	}

	tokens, err := a.issueTokens(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	a.updateLastLogin(ctx, user.ID)
	return &user, tokens, nil
}

func (a *AuthModule) updateLastLogin(ctx context.Context, userID int) {
	_, _ = a.db.Exec(ctx, "UPDATE users SET last_login = NOW() WHERE id = $1", userID)
}

// Refresh exchanges a valid refresh token for a new access token.
func (a *AuthModule) Refresh(ctx context.Context, refreshToken string) (string, error) {
	userIDStr, err := a.redis.Get(ctx, refreshKey(refreshToken)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", err
	}
	userID, err := strconv.Atoi(userIDStr)
	if err != nil {
		return "", ErrInvalidToken
	}
	return a.generateJWT(userID)
}

// Logout revokes one refresh token.
func (a *AuthModule) Logout(ctx context.Context, refreshToken string) error {
	userIDStr, err := a.redis.Get(ctx, refreshKey(refreshToken)).Result()
	if err == nil {
		if userID, convErr := strconv.Atoi(userIDStr); convErr == nil {
			a.redis.SRem(ctx, userTokensKey(userID), refreshToken)
		}
	}
	return a.redis.Del(ctx, refreshKey(refreshToken)).Err()
}

// LogoutAll revokes every refresh token issued to a user.
func (a *AuthModule) LogoutAll(ctx context.Context, userID int) error {
	tokens, err := a.redis.SMembers(ctx, userTokensKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	for _, token := range tokens {
		a.redis.Del(ctx, refreshKey(token))
	}
	return a.redis.Del(ctx, userTokensKey(userID)).Err()
}

// ValidateAccessToken parses and verifies a JWT, returning the user ID.
func (a *AuthModule) ValidateAccessToken(_ context.Context, token string) (int, error) {
	parsedToken, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(a.JWTSecret), nil
	})
	if err != nil {
		return 0, err
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok || !parsedToken.Valid {
		return 0, ErrInvalidToken
	}
	userIDFloat, ok := claims["user_id"].(float64)
	if !ok {
		return 0, ErrInvalidToken
	}
	return int(userIDFloat), nil
}

// GetUser fetches a user's profile.
func (a *AuthModule) GetUser(ctx context.Context, userID int) (*models.User, error) {
	var user models.User
	err := a.db.QueryRow(ctx,
		"SELECT id, username, email, password, first_name, last_name, role, is_active, created_at, updated_at, last_login FROM users WHERE id = $1",
		userID,
	).Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.FirstName,
		&user.LastName, &user.Role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt, &user.LastLogin)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ChangePassword verifies the current password before storing a new hash.
func (a *AuthModule) ChangePassword(ctx context.Context, userID int, currentPassword, newPassword string) error {
	user, err := a.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = a.db.Exec(ctx, "UPDATE users SET password = $1, updated_at = NOW() WHERE id = $2",
		string(hashedPassword), userID)
	return err
}

// InitializeAdmin creates the first account with the admin role. Refused
// once any user exists.
func (a *AuthModule) InitializeAdmin(ctx context.Context, username, email, password string) (int, error) {
	var count int
	if err := a.db.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, errors.New("users already exist, admin initialization not allowed")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}

	var userID int
	err = a.db.QueryRow(ctx,
		"INSERT INTO users (username, email, password, role) VALUES ($1, $2, $3, 'admin') RETURNING id",
		username, email, string(hashedPassword),
	).Scan(&userID)
	return userID, err
}
