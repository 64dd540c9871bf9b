package core

import "strings"

// CatalogItem is a preview of a catalog entity, as returned by search,
// bookmarks and the recently played list.
type CatalogItem struct {
	Type       ContextType `json:"type"`
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	ArtistID   string      `json:"artist_id,omitempty"`
	ArtistName string      `json:"artist_name,omitempty"`
	ImageURL   string      `json:"image_url,omitempty"`
}

// Ref returns the play reference for the item, e.g. "album:ID:ARTIST".
func (i CatalogItem) Ref() string {
	parts := []string{strings.ToLower(string(i.Type)), i.ID}
	if i.ArtistID != "" && i.Type != ContextArtist && i.Type != ContextPlaylist {
		parts = append(parts, i.ArtistID)
	}
	return strings.Join(parts, ":")
}
