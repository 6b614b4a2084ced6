package engine

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/convohq/playbook/pkg/schema"
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^[+]?[\d\s()-]{7,}$`)
)

// ValidAnswer reports whether input satisfies a question step's validator.
// An unset validator behaves like "text".
func ValidAnswer(v schema.Validation, input string) bool {
	switch v {
	case schema.ValidationEmail:
		return emailRe.MatchString(input)
	case schema.ValidationPhone:
		return phoneRe.MatchString(input)
	case schema.ValidationNumber:
		_, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
		return err == nil
	case schema.ValidationText, "":
		return strings.TrimSpace(input) != ""
	default:
		return strings.TrimSpace(input) != ""
	}
}
