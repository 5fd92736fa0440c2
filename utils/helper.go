package utils

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

// CountryCode is the default region for phone parsing.
var CountryCode = "MN"

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// NormalizePhoneNumber parses and returns the E.164 form, e.g. +97699112233.
func NormalizePhoneNumber(phoneNumber, countryCode string) (string, error) {
	if countryCode == "" {
		countryCode = CountryCode
	}
	p, err := libphonenumber.Parse(strings.TrimSpace(phoneNumber), countryCode)
	if err != nil {
		return "", NewValidationError("invalid phone number")
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", NewValidationError("phone number is not valid")
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}

// ProcessValidationErrors maps field name to the failing tag.
func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errorResponse
	}
	for _, ve := range validationErrors {
		errorResponse[LowercaseFirst(ve.Field())] = ve.Tag()
	}
	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// returns slice removing duplicate elements
func UniqueSlice[T comparable](slice []T) []T {
	inResult := make(map[T]bool)
	var result []T
	for _, elm := range slice {
		if _, ok := inResult[elm]; !ok {
			inResult[elm] = true
			result = append(result, elm)
		}
	}
	return result
}

// safely dereference pointer of type T, nil pointer return zero value or optional default
func DereferencePtr[T any](ptr *T, defaults ...T) T {
	var defaultValue T
	if len(defaults) > 0 {
		defaultValue = defaults[0]
	}
	if ptr == nil {
		return defaultValue
	}
	return *ptr
}

func NilIfEmpty[T comparable](ptr T) *T {
	var defaultZero T
	if ptr == defaultZero {
		return nil
	}
	return &ptr
}

// turn ToggleActive to toggleActive
func LowercaseFirst(s string) string {
	if s == "" {
		return ""
	}
	runes := []rune(s)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

// FirstName returns the first word of a full name, used where only a hint is shown publicly.
func FirstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ParseDecimal converts a string to a decimal.Decimal value.
func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}
	return decimal.NewFromString(value)
}

// StoreLock obtains a short redis lock and returns its release func.
// When redis is not connected the lock is skipped and release is a no-op.
func StoreLock(ctx context.Context, lockType string, key string, ttl time.Duration, moduleName string, functionName string) (func(), error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}, nil
	}
	lockKey := fmt.Sprintf("%s:%s", lockType, key)
	lock, err := locker.Obtain(ctx, lockKey, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 20),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock", lockKey, err)
		return nil, ErrorLockBusy
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock", lockKey, err)
		return nil, err
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}
