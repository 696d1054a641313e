// handlers/api/auth.go
package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken creates a new JWT token for the user
func GenerateToken(email, name, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken verifies the JWT token and returns the claims
func ValidateToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if claims.Email == "" {
		return nil, fmt.Errorf("token has no email claim")
	}

	return claims, nil
}

// GetSessionToken safely retrieves JWT token from session
func GetSessionToken(c *fiber.Ctx, store *session.Store) (string, error) {
	sess, err := store.Get(c)
	if err != nil {
		return "", err
	}

	token := sess.Get("token")
	if token == nil {
		return "", fmt.Errorf("no token found in session")
	}

	tokenStr, ok := token.(string)
	if !ok {
		return "", fmt.Errorf("invalid token format")
	}

	return tokenStr, nil
}

func bearerToken(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// BearerMiddleware authenticates /api calls with the JWT from the
// Authorization header. Same-origin browser calls without the header fall
// back to the token held in the session.
func BearerMiddleware(secret string, store *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := bearerToken(c)
		if raw == "" && store != nil {
			raw, _ = GetSessionToken(c, store)
		}
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":  "missing bearer token",
				"reauth": true,
			})
		}

		claims, err := ValidateToken(raw, secret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":  "invalid token",
				"reauth": true,
			})
		}

		c.Locals("email", claims.Email)
		c.Locals("name", claims.Name)
		return c.Next()
	}
}

// SessionMiddleware checks if the user is authenticated
func SessionMiddleware(store *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			return c.Redirect("/login")
		}

		authenticated := sess.Get("authenticated")
		if authenticated == nil || authenticated != true {
			return c.Redirect("/login")
		}

		if name := sess.Get("name"); name != nil {
			c.Locals("name", name)
		}
		email := sess.Get("email")
		if email != nil {
			c.Locals("email", email)
		}

		return c.Next()
	}
}

// GetSessionName safely retrieves the display name from context
func GetSessionName(c *fiber.Ctx) string {
	if name, ok := c.Locals("name").(string); ok {
		return name
	}
	return ""
}

// GetSessionEmail safely retrieves email from context
func GetSessionEmail(c *fiber.Ctx) string {
	if email := c.Locals("email"); email != nil {
		if emailStr, ok := email.(string); ok {
			return emailStr
		}
	}
	return ""
}
