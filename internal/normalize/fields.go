package normalize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/actuallystonmai/measurement-service/internal/domain"
)

var (
	allowedSet   = toSet(append(append([]string{}, domain.CanonicalFields...), domain.MetadataFields...))

	canonicalHint = func() string {
		names := append([]string{}, domain.CanonicalFields...)
		sort.Strings(names)
		return fmt.Sprintf("Did you mean one of: %s?", strings.Join(names, ", "))
	}()
)

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// UnknownFields diffs the supplied keys against canonical and metadata names.
// Details are sorted by field name so responses are stable.
func UnknownFields(keys []string) []domain.ErrorDetail {
	var unknown []string
	for _, k := range keys {
		if _, ok := allowedSet[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)

	details := make([]domain.ErrorDetail, 0, len(unknown))
	for _, name := range unknown {
		details = append(details, domain.ErrorDetail{
			Field:   name,
			Message: fmt.Sprintf("Unknown field: %s", name),
			Hint:    canonicalHint,
		})
	}
	return details
}
