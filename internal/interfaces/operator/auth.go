package operator

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the operator websocket JWT payload — org_id gates which
// conversation events a connection is allowed to see.
type Claims struct {
	OrgID string `json:"org_id"`
	jwt.RegisteredClaims
}

// ValidateToken parses and verifies tokenString against secret, returning
// the org_id claim on success.
func ValidateToken(tokenString, secret string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid operator token")
	}
	if claims.OrgID == "" {
		return "", fmt.Errorf("operator token missing org_id claim")
	}
	return claims.OrgID, nil
}
