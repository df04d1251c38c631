package transfer

import "github.com/golang-jwt/jwt/v5"

type CustomClaims struct {
	OrgID string `json:"org_id"`
	jwt.RegisteredClaims
}
