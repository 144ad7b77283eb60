package application

import (
	"sort"
	"strings"

	"github.com/ericfisherdev/sharedlogin/internal/domain/model"
)

// ResolveOverride looks up an operator-pinned credential for the service.
// The exact service key is tried first, then the first key, in sorted order,
// that is a case-insensitive substring of the service name. An override that
// references a credential missing from creds is treated as absent.
func ResolveOverride(sub model.Subscriber, service string, creds []model.Credential) (model.Credential, bool) {
	if len(sub.ManualOverrides) == 0 {
		return model.Credential{}, false
	}

	clean := cleanServiceName(service)
	credID, ok := sub.ManualOverrides[clean]
	if !ok || credID == "" {
		credID = ""
		lower := strings.ToLower(clean)
		keys := make([]string, 0, len(sub.ManualOverrides))
		for k := range sub.ManualOverrides {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if strings.Contains(lower, strings.ToLower(k)) {
				credID = sub.ManualOverrides[k]
				break
			}
		}
	}
	if credID == "" {
		return model.Credential{}, false
	}

	for _, c := range creds {
		if c.ID == credID {
			return c, true
		}
	}
	return model.Credential{}, false
}

// cleanServiceName drops any "|timestamp" suffix and surrounding whitespace.
func cleanServiceName(service string) string {
	name, _, _ := strings.Cut(service, "|")
	return strings.TrimSpace(name)
}
