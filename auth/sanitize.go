package auth

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = bluemonday.StrictPolicy()

// SanitizeUsername strips any HTML and surrounding whitespace. Usernames are
// echoed back in JSON responses, so they must never carry markup.
func SanitizeUsername(username string) string {
	return strings.TrimSpace(policy.Sanitize(username))
}
