package account

import (
	"strings"

	"golang.org/x/text/secure/precis"
)

// Normalise maps an email address onto the form used for uniqueness checks:
// dots are removed from the local part, a +tag suffix is stripped, and both
// parts are case-folded. "Ex.Ample+tag@Example.COM" and "example@example.com"
// normalise identically.
func Normalise(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return fold(email)
	}

	local = strings.ReplaceAll(local, ".", "")
	if i := strings.IndexByte(local, '+'); i >= 0 {
		local = local[:i]
	}

	return fold(local) + "@" + fold(domain)
}

// fold case-folds through the PRECIS UsernameCaseMapped profile, falling back
// to a plain lowercase for strings the profile rejects.
func fold(s string) string {
	if folded, err := precis.UsernameCaseMapped.String(s); err == nil {
		return folded
	}
	return strings.ToLower(s)
}
