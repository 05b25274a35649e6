package utils

import (
	"fmt"
	"regexp"
	"time"
)

const (
	// MaxReferenceAttempts bounds the random candidates tried before falling back
	MaxReferenceAttempts = 100
	referencePrefix      = "REC"
)

var referencePattern = regexp.MustCompile(`^REC-\d{8}-(\d{4}|\d{6})$`)

// IsReferenceCode reports whether code has the random or the fallback form
func IsReferenceCode(code string) bool {
	return referencePattern.MatchString(code)
}

// GenerateReferenceCode returns a reclamation reference REC-YYYYMMDD-NNNN.
// intn must return a value in [0, n). exists reports whether a candidate is
// already taken by another record. After MaxReferenceAttempts collisions the
// last 6 digits of now in milliseconds are used instead, unchecked.
func GenerateReferenceCode(now time.Time, intn func(n int) int, exists func(code string) (bool, error)) (string, error) {
	date := now.Format("20060102")
	for i := 0; i < MaxReferenceAttempts; i++ {
		code := fmt.Sprintf("%s-%s-%04d", referencePrefix, date, 1000+intn(9000))
		taken, err := exists(code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return fmt.Sprintf("%s-%s-%06d", referencePrefix, date, now.UnixMilli()%1000000), nil
}
