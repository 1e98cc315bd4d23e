package nft

import (
	"strings"

	"github.com/vibescrow/backend/internal/models"
)

// Search keeps items whose name, collection name or collection address
// contains query, case-insensitively. An empty query keeps everything.
func Search(items []models.NFTMetadata, query string) []models.NFTMetadata {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}
	var out []models.NFTMetadata
	for _, n := range items {
		if strings.Contains(strings.ToLower(n.Name), q) ||
			strings.Contains(strings.ToLower(n.CollectionName), q) ||
			strings.Contains(strings.ToLower(n.Collection), q) {
			out = append(out, n)
		}
	}
	return out
}

// Selection identifies one picked token.
type Selection struct {
	Collection string `json:"collection"`
	TokenID    string `json:"token_id"`
}

func IsSelected(n models.NFTMetadata, selected []Selection) bool {
	for _, s := range selected {
		if strings.EqualFold(s.Collection, n.Collection) && s.TokenID == n.TokenID {
			return true
		}
	}
	return false
}

// Unowned returns the selections that match no item in owned.
func Unowned(owned []models.NFTMetadata, selected []Selection) []Selection {
	var missing []Selection
	for _, s := range selected {
		found := false
		for _, n := range owned {
			if IsSelected(n, []Selection{s}) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, s)
		}
	}
	return missing
}
