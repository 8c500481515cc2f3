package utils

import (
	"math/rand"
	"strings"
	"time"
	"unicode"

	"gorm.io/gorm"
)

const slugSuffixLength = 6
const slugMaxLength = 60
const letterBytes = "abcdefghijklmnopqrstuvwxyz0123456789"

// Slugify lowercases the name and collapses everything that isn't a letter
// or digit into single dashes.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > slugMaxLength {
		slug = strings.Trim(slug[:slugMaxLength], "-")
	}
	if slug == "" {
		slug = "item"
	}
	return slug
}

// GenerateUniqueSlug returns a slug for name that no row of model carries
// yet, appending a random suffix while the plain slug is taken.
func GenerateUniqueSlug(tx *gorm.DB, model interface{}, name string) (string, error) {
	seededRand := rand.New(rand.NewSource(time.Now().UnixNano()))
	base := Slugify(name)

	candidate := base
	for {
		var count int64
		if err := tx.Model(model).Where("slug = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}

		suffix := make([]byte, slugSuffixLength)
		for i := range suffix {
			suffix[i] = letterBytes[seededRand.Intn(len(letterBytes))]
		}
		candidate = base + "-" + string(suffix)
	}
}
