package catalog

import "strings"

// FormatHits converts raw search hits into list summaries. The source
// documents differ per index, so every field is optional.
func FormatHits(hits []SearchHit) []EntitySummary {
	out := make([]EntitySummary, 0, len(hits))
	for _, h := range hits {
		src := h.Source
		s := EntitySummary{
			ID:                 str(src["id"]),
			Name:               str(src["name"]),
			DisplayName:        str(src["displayName"]),
			FullyQualifiedName: str(src["fullyQualifiedName"]),
			Description:        str(src["description"]),
			EntityType:         str(src["entityType"]),
			Index:              h.Index,
		}
		if s.ID == "" {
			s.ID = h.ID
		}
		if s.EntityType == "" {
			s.EntityType = strings.TrimSuffix(h.Index, "_search_index")
		}
		if svc, ok := src["service"].(map[string]any); ok {
			s.Service = str(svc["name"])
		} else {
			s.Service = str(src["service"])
		}
		if owner, ok := src["owner"].(map[string]any); ok {
			s.Owner = str(owner["displayName"])
			if s.Owner == "" {
				s.Owner = str(owner["name"])
			}
		}
		if tier, ok := src["tier"].(map[string]any); ok {
			s.Tier = str(tier["tagFQN"])
		}
		if tags, ok := src["tags"].([]any); ok {
			for _, t := range tags {
				tag, ok := t.(map[string]any)
				if !ok {
					continue
				}
				fqn := str(tag["tagFQN"])
				if fqn == "" || strings.HasPrefix(fqn, "Tier.") {
					continue
				}
				s.Tags = append(s.Tags, fqn)
			}
		}
		out = append(out, s)
	}
	return out
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
