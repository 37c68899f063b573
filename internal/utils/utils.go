// Package utils provides small reusable helpers shared across the services.
//
// Functional Programming Utilities:
//   - Filter: generic slice filtering.
//
// Slices:
//   - Contains, NormalizeTags
//
// Validation Helpers:
//   - IsAlphanumericPlus: validates string content.
//
// Random strings:
//   - GenerateRandomString, GenerateRandomStringAll: tokens and secrets.
package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

// filter
type keepFunc[E any] func(E) bool

// Filter function definition of a functional programming "function"
func Filter[S ~[]E, E any](s S, f keepFunc[E]) S {
	result := S{}
	for _, v := range s {
		if f(v) {
			result = append(result, v)
		}
	}

	return result
}

// Contains function iterates over a slice of strings and checks if the given string is there
func Contains(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}

	return false
}

// NormalizeTags lowercases and trims tags, dropping empties and duplicates.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" && !Contains(out, tag) {
			out = append(out, tag)
		}
	}

	return out
}

// IsAlphanumericPlus function checks if the given string matches the regex of numericals
// and letter characters plus some special characters given
func IsAlphanumericPlus(s, plus string) bool {
	re := regexp.MustCompile(fmt.Sprintf(`^[a-zA-Z0-9%s]+$`, regexp.QuoteMeta(plus)))

	return re.MatchString(s)
}

// GenerateRandomStringAll returns length url-safe base64 characters.
func GenerateRandomStringAll(length int) (string, error) {
	byteLength := (length * 6 / 8) + 1 // because base64 encodes 6 bits per character
	bytes := make([]byte, byteLength)

	_, err := rand.Read(bytes)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(bytes)[:length], nil
}

// GenerateRandomString returns length alphanumeric characters.
func GenerateRandomString(length int) (string, error) {
	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	bytes := make([]byte, length)
	random := make([]byte, length)
	_, err := rand.Read(random)
	if err != nil {
		return "", err
	}
	for i := 0; i < length; i++ {
		bytes[i] = chars[int(random[i])%len(chars)]
	}
	return string(bytes), nil
}
