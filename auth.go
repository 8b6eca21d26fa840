package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/go-chi/render"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

//---
// Structs
//

// Represents a local user
type User struct {
	ID       int    `storm:"increment"` // pk
	Email    string `storm:"unique"`
	Name     string
	Password string
	Admin    bool
}

// Sets the User.Password to the hashed value for the provided plain text
func (u *User) SetPassword(pass []byte) error {
	hash, err := bcrypt.GenerateFromPassword(pass, bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hash)
	return nil
}

// Compares User.Password with the provided plain text.
// Returns values directly as provided by the bcrypt library for downstream processing.
func (u *User) VerifyPassword(pass []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), pass)
}

//---
// Generic payloads
//---

// Login payload
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (l *LoginPayload) Bind(r *http.Request) error {
	if l.Email == "" {
		return errors.New("email is required")
	}
	return nil
}

type JWTPayload struct {
	SignedToken string `json:"token"`
}

type contextKey string

const jwtContextKey contextKey = "jwt"

//---
// Helper functions
//

// Produce a standard format JWT token
func (e *Env) newJWT(sub string) (string, error) {
	now := e.Clock.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    e.Config.Auth.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(e.Config.Auth.Lifespan)),
		Subject:   sub,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return token.SignedString([]byte(e.Config.Auth.Secret))
}

// CreateUser stores a new user with a hashed password.
func (e *Env) CreateUser(email, password string, admin bool) (*User, error) {
	if e.DB == nil {
		return nil, errors.New("storage is disabled")
	}

	user := &User{
		Email: email,
		Name:  email,
		Admin: admin,
	}
	if err := user.SetPassword([]byte(password)); err != nil {
		return nil, err
	}
	if err := e.DB.Save(user); err != nil {
		return nil, err
	}
	return user, nil
}

//---
// Views
//---

// Login looks up a user, verifies password and returns response
func (e *Env) Login(w http.ResponseWriter, r *http.Request) {
	data := &LoginPayload{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	var user User
	if err := e.DB.One("Email", data.Email, &user); err != nil {
		if errors.Is(err, storm.ErrNotFound) {
			render.Render(w, r, ErrNotFound)
			return
		}
		render.Render(w, r, ErrRender(err))
		return
	}

	err := user.VerifyPassword([]byte(data.Password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			render.Render(w, r, ErrPermissionDenied(errors.New("Invalid password")))
			return
		}
		render.Render(w, r, ErrRender(err))
		return
	}

	tokenString, err := e.newJWT(user.Email)
	if err != nil {
		render.Render(w, r, ErrRender(err))
		return
	}

	render.JSON(w, r, JWTPayload{tokenString})
}

// Provides a new token to the client
func (e *Env) JWTRefresh(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(jwtContextKey).(*jwt.RegisteredClaims)
	if !ok {
		render.Render(w, r, ErrUnauthorized(JWTEmpty))
		return
	}

	tokenString, err := e.newJWT(claims.Subject)
	if err != nil {
		render.Render(w, r, ErrRender(err))
		return
	}

	render.JSON(w, r, JWTPayload{tokenString})
}

//---
// Authentication middleware
//---

var (
	JWTEmpty = errors.New("Bearer token not provided")
)

func tokenFromRequest(r *http.Request) string {
	// Get token from query params, the only option for browser websockets
	if token := r.URL.Query().Get("jwt"); token != "" {
		return token
	}

	// Get token from authorization header
	bearer := r.Header.Get("Authorization")
	if len(bearer) > 7 && strings.ToUpper(bearer[0:6]) == "BEARER" {
		return bearer[7:]
	}

	// Get token from cookie
	if cookie, err := r.Cookie("jwt"); err == nil {
		return cookie.Value
	}
	return ""
}

// ValidateJWT requires a valid token when authentication is enabled and is a
// pass-through otherwise.
func (e *Env) ValidateJWT(next http.Handler) http.Handler {
	if !e.Config.Auth.Enabled {
		return next
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithIssuer(e.Config.Auth.Issuer),
		jwt.WithTimeFunc(func() time.Time { return e.Clock.Now() }),
	)
	secret := []byte(e.Config.Auth.Secret)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := tokenFromRequest(r)

		// Token is required, cya
		if tokenStr == "" {
			render.Render(w, r, ErrUnauthorized(JWTEmpty))
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := parser.ParseWithClaims(tokenStr, claims,
			func(*jwt.Token) (interface{}, error) { return secret, nil })
		if err != nil || !token.Valid {
			reason := errors.New("Invalid token")
			if errors.Is(err, jwt.ErrTokenExpired) {
				reason = errors.New("Token has expired")
			}
			render.Render(w, r, ErrUnauthorized(reason))
			return
		}

		ctx := context.WithValue(r.Context(), jwtContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
