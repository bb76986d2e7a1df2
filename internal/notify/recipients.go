package notify

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"plotwaitlist-backend/internal/logger"
)

var (
	validate       = validator.New()
	recipientSplit = regexp.MustCompile(`[\s,]+`)
)

// ParseRecipients splits a comma or whitespace separated address list. Entries
// are trimmed and deduplicated case-insensitively; invalid addresses are
// dropped with a warning.
func ParseRecipients(raw string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, part := range recipientSplit.Split(raw, -1) {
		addr := strings.TrimSpace(part)
		if addr == "" {
			continue
		}
		key := strings.ToLower(addr)
		if seen[key] {
			continue
		}
		seen[key] = true
		if err := validate.Var(addr, "email"); err != nil {
			logger.Warn("Dropping invalid recipient address", "address", addr)
			continue
		}
		out = append(out, addr)
	}
	return out
}
