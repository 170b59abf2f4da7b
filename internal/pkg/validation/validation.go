// Package validation registers the binding tags used by the wiki's request
// bodies on gin's validator.
package validation

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	MaxFolderLength  = 191
	MaxSegmentLength = 64
	MaxTagLength     = 40
)

var once sync.Once

// Register installs the custom validators on gin's default engine. It is
// safe to call more than once.
func Register() {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("folderpath", folderPath)
		_ = v.RegisterValidation("tag", tag)
	})
}

func folderPath(fl validator.FieldLevel) bool {
	return ValidFolder(fl.Field().String())
}

func tag(fl validator.FieldLevel) bool {
	return ValidTag(fl.Field().String())
}

// ValidFolder accepts slash separated paths. Empty segments are ignored;
// control characters and backslashes are not allowed.
func ValidFolder(s string) bool {
	if len(s) > MaxFolderLength || strings.ContainsRune(s, '\\') || hasControl(s) {
		return false
	}
	for _, seg := range strings.Split(s, "/") {
		seg = strings.TrimSpace(seg)
		if seg == "." || seg == ".." || utf8.RuneCountInString(seg) > MaxSegmentLength {
			return false
		}
	}
	return true
}

// ValidTag accepts a non-blank label without commas or control characters.
func ValidTag(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > MaxTagLength {
		return false
	}
	return !strings.ContainsRune(s, ',') && !hasControl(s)
}

func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}
