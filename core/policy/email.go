package policy

import (
	"context"
	_ "embed"
	"net/mail"
	"slices"
	"sort"
	"strings"

	"github.com/authifier/authifier/core/autherr"
)

//go:embed data/disposable_domains.txt
var disposableDomainsRaw string

// disposableDomains is the embedded list, lowercased and sorted at build of
// the package so lookups can binary search.
var disposableDomains = loadList(disposableDomainsRaw)

// ValidateEmail checks syntax and, per the configured blocklist, the domain.
// Syntax failures return IncorrectData("email"); blocked domains return
// Blacklisted carrying the configured support address.
func (e *Engine) ValidateEmail(ctx context.Context, email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return autherr.NewIncorrectData("email")
	}

	_, domain, ok := strings.Cut(email, "@")
	if !ok || domain == "" {
		return autherr.NewIncorrectData("email")
	}
	domain = strings.ToLower(domain)

	var list []string
	switch e.cfg.Blocklist {
	case BlocklistCustom:
		list = e.customDomains
	case BlocklistBundled:
		list = disposableDomains
	default:
		return nil
	}

	if contains(list, domain) {
		return autherr.NewBlacklisted(e.cfg.SupportEmail, "email domain is not allowed")
	}
	return nil
}

// loadList splits an embedded newline list into a sorted, lowercased slice.
func loadList(raw string) []string {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func sortedLower(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func contains(sorted []string, needle string) bool {
	_, ok := slices.BinarySearch(sorted, needle)
	return ok
}
