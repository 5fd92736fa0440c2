package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// DriverClaim is carried by the mobile portal token.
type DriverClaim struct {
	DriverId int    `json:"driver_id"`
	StoreId  string `json:"store_id"`
	jwt.StandardClaims
}

const driverTokenIssuer = "commerce-driver-portal"

func getJwtSecret() []byte {
	secret := os.Getenv("API_SECRET")
	if secret == "" {
		secret = "commerce-dev-secret"
	}
	return []byte(secret)
}

func tokenLifespan() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

func JwtGenerateDriver(driverId int, storeId string) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &DriverClaim{
		DriverId: driverId,
		StoreId:  storeId,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(tokenLifespan()).Unix(),
			IssuedAt:  now.Unix(),
			Issuer:    driverTokenIssuer,
		},
	})
	return t.SignedString(getJwtSecret())
}

func JwtValidateDriver(token string) (*DriverClaim, error) {
	parsed, err := jwt.ParseWithClaims(token, &DriverClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return getJwtSecret(), nil
	})
	if err != nil {
		return nil, err
	}
	claim, ok := parsed.Claims.(*DriverClaim)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if claim.Issuer != driverTokenIssuer || claim.DriverId <= 0 || claim.StoreId == "" {
		return nil, errors.New("invalid token claims")
	}
	return claim, nil
}
