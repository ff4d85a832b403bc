package auth

import "regexp"

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
	emailRe    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	digitRe    = regexp.MustCompile(`\d`)
	letterRe   = regexp.MustCompile(`[a-zA-Z]`)
)

// IsValidUsername reports whether a username is 3-20 characters of letters,
// digits and underscores.
func IsValidUsername(username string) bool {
	return usernameRe.MatchString(username)
}

// IsValidPassword requires at least 8 characters with one letter and one digit.
func IsValidPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	return digitRe.MatchString(password) && letterRe.MatchString(password)
}

// IsValidEmail does a syntactic check only; deliverability is not verified.
func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}
