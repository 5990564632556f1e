package scan

import (
	"context"
	"strings"

	"github.com/unisonhq/unison/internal/provider"
)

// columnPatterns maps column-name substrings to semantic tags. First match
// wins, checked in this order.
var columnPatterns = []struct {
	token    string
	semantic string
}{
	{"email", "email"},
	{"phone", "phone"},
	{"mobile", "phone"},
	{"ssn", "ssn"},
	{"social_security", "ssn"},
	{"first_name", "given-name"},
	{"last_name", "family-name"},
	{"full_name", "name"},
	{"surname", "family-name"},
	{"birth", "date-of-birth"},
	{"dob", "date-of-birth"},
	{"address", "address"},
	{"street", "address"},
	{"zip", "postal-code"},
	{"postal", "postal-code"},
	{"city", "city"},
	{"ip_address", "ip-address"},
	{"passport", "passport"},
}

// HeuristicClassifier tags columns by name patterns. It stands in when no
// richer classifier is wired up.
type HeuristicClassifier struct{}

// Classify matches lowercased column names against the known patterns.
func (HeuristicClassifier) Classify(_ context.Context, table provider.TableMeta) (map[string]string, error) {
	tags := make(map[string]string)
	for _, col := range table.Columns {
		lower := strings.ToLower(col.Name)
		for _, p := range columnPatterns {
			if strings.Contains(lower, p.token) {
				tags[col.Name] = p.semantic
				break
			}
		}
	}
	return tags, nil
}
