package gateway

import (
	"context"
	"fmt"

	"github.com/tessro/tandem/internal/core"
	tandemerrors "github.com/tessro/tandem/internal/errors"
)

const previewFields = `__typename
    ... on ArtistPreview { id name imageUrl }
    ... on AlbumPreview { id name imageUrl artist { id name } }
    ... on PlaylistPreview { id name imageUrl }
    ... on SongPreview { id title artistId imageUrl }`

const cloudStateFields = `primeDeviceId trackId trackArtistId isPlaying positionMs positionUpdatedAt repeatMode shuffleMode volume`

const (
	songPlayMutation = `mutation SongPlay($input: SongPlayInput!) {
  songPlay(input: $input)
}`

	getSongQuery = `query GetSong($songId: ID!, $artistId: ID!) {
  song(songId: $songId, artistId: $artistId) {
    id title duration imageUrl
    artist { id name imageUrl }
  }
}`

	getCloudStateQuery = `query GetCloudState {
  cloudState { ` + cloudStateFields + ` }
}`

	getDevicesQuery = `query GetDevices {
  devices { deviceId name type }
}`

	cloudStateUpdateMutation = `mutation CloudStateUpdate($input: CloudStateUpdateInput!) {
  cloudStateUpdate(input: $input)
}`

	changePrimeDeviceMutation = `mutation ChangePrimeDevice($primeDeviceId: String) {
  cloudStateUpdate(input: { attributes: { primeDeviceId: $primeDeviceId } })
}`

	devicePingMutation = `mutation DevicePing($input: DevicePingInput!) {
  devicePing(input: $input)
}`

	getAlbumQuery = `query GetAlbum($input: AlbumQueryInput!) {
  album(input: $input) {
    id name
    artist { id name }
    songs { edges { node { id title duration artist { id name imageUrl } } } pageInfo { endCursor hasNextPage } }
  }
}`

	getArtistQuery = `query GetArtist($artistId: ID!) {
  artist(artistId: $artistId) {
    id name avatarUrl
    songs { edges { node { id title duration artist { id name } } } }
  }
}`

	searchQuery = `query Search($input: SearchInput!) {
  search(input: $input) {
    items { ` + previewFields + ` }
  }
}`

	getBookmarksQuery = `query GetBookmarks {
  bookmarks { edges { node { ` + previewFields + ` } } }
}`

	bookmarkAddMutation = `mutation BookmarkAdd($input: BookmarkAddInput!) {
  bookmarkAdd(input: $input)
}`

	bookmarkRemoveMutation = `mutation BookmarkRemove($input: BookmarkRemoveInput!) {
  bookmarkRemove(input: $input)
}`

	getRecentlyPlayedQuery = `query GetRecentlyPlayed {
  recentPlayed { ` + previewFields + ` }
}`

	getPlaylistQuery = `query GetPlaylist($playlistId: ID!) {
  playlist(playlistId: $playlistId) {
    id name
    songs { edges { node { id title duration imageUrl artist { id name } } } pageInfo { endCursor hasNextPage } }
  }
}`
)

// ResolvePlayableURL asks the backend for a short-lived playable URL.
// URLs are never cached.
func (c *Client) ResolvePlayableURL(ctx context.Context, req core.PlayRequest) (string, error) {
	contextType := req.ContextType
	if contextType == "" {
		contextType = core.ContextSong
	}
	contextID := req.ContextID
	if contextID == "" {
		contextID = req.TrackID
	}

	var resp struct {
		SongPlay *string `json:"songPlay"`
	}
	vars := map[string]interface{}{
		"input": map[string]interface{}{
			"songId":      req.TrackID,
			"artistId":    req.ArtistID,
			"contextId":   contextID,
			"contextType": string(contextType),
		},
	}
	if err := c.Do(ctx, "SongPlay", songPlayMutation, vars, &resp); err != nil {
		return "", fmt.Errorf("%w: %w", tandemerrors.ErrResolveFailed, err)
	}
	if resp.SongPlay == nil || *resp.SongPlay == "" {
		return "", fmt.Errorf("%w: empty url for track %s", tandemerrors.ErrResolveFailed, req.TrackID)
	}
	return *resp.SongPlay, nil
}

// FetchTrack hydrates a track from its id pair. It returns nil, nil when the
// backend knows no such track.
func (c *Client) FetchTrack(ctx context.Context, trackID, artistID string) (*core.Track, error) {
	var resp struct {
		Song *songWire `json:"song"`
	}
	vars := map[string]interface{}{"songId": trackID, "artistId": artistID}
	if err := c.Do(ctx, "GetSong", getSongQuery, vars, &resp); err != nil {
		return nil, err
	}
	if resp.Song == nil {
		return nil, nil
	}
	t := resp.Song.toCore()
	return &t, nil
}

// FetchCloudState returns the current session mirror, or nil when none exists.
func (c *Client) FetchCloudState(ctx context.Context) (*core.CloudState, error) {
	var resp struct {
		CloudState *cloudStateWire `json:"cloudState"`
	}
	if err := c.Do(ctx, "GetCloudState", getCloudStateQuery, nil, &resp); err != nil {
		return nil, err
	}
	if resp.CloudState == nil {
		return nil, nil
	}
	cs := resp.CloudState.toCore()
	return &cs, nil
}

// FetchDevices returns the device registry.
func (c *Client) FetchDevices(ctx context.Context) ([]core.Device, error) {
	var resp struct {
		Devices []deviceWire `json:"devices"`
	}
	if err := c.Do(ctx, "GetDevices", getDevicesQuery, nil, &resp); err != nil {
		return nil, err
	}
	devices := make([]core.Device, 0, len(resp.Devices))
	for i := range resp.Devices {
		devices = append(devices, resp.Devices[i].toCore())
	}
	return devices, nil
}

// PublishSessionMutation writes the fields present in m. A prime-device
// change is sent on its own, ahead of the other fields.
func (c *Client) PublishSessionMutation(ctx context.Context, m core.SessionMutation) error {
	if m.PrimeDeviceID != nil {
		if err := c.ChangePrimeDevice(ctx, *m.PrimeDeviceID); err != nil {
			return err
		}
		m.PrimeDeviceID = nil
	}
	if m.IsEmpty() {
		return nil
	}

	vars := map[string]interface{}{
		"input": map[string]interface{}{"attributes": mutationAttributes(m)},
	}
	return c.Do(ctx, "CloudStateUpdate", cloudStateUpdateMutation, vars, nil)
}

// ChangePrimeDevice designates the device allowed to emit sound.
func (c *Client) ChangePrimeDevice(ctx context.Context, deviceID string) error {
	vars := map[string]interface{}{"primeDeviceId": deviceID}
	return c.Do(ctx, "ChangePrimeDevice", changePrimeDeviceMutation, vars, nil)
}

// PublishHeartbeat advertises this device to the registry.
func (c *Client) PublishHeartbeat(ctx context.Context, d core.Device) error {
	vars := map[string]interface{}{
		"input": map[string]interface{}{
			"deviceId": d.ID,
			"name":     d.Name,
			"type":     string(d.Class),
		},
	}
	return c.Do(ctx, "DevicePing", devicePingMutation, vars, nil)
}

// FetchAlbum returns an album's tracks in album order.
func (c *Client) FetchAlbum(ctx context.Context, albumID, artistID string) (*Collection, error) {
	var resp struct {
		Album *struct {
			ID     string         `json:"id"`
			Name   string         `json:"name"`
			Artist artistWire     `json:"artist"`
			Songs  songConnection `json:"songs"`
		} `json:"album"`
	}
	vars := map[string]interface{}{
		"input": map[string]interface{}{"albumId": albumID, "artistId": artistID},
	}
	if err := c.Do(ctx, "GetAlbum", getAlbumQuery, vars, &resp); err != nil {
		return nil, err
	}
	if resp.Album == nil {
		return nil, fmt.Errorf("album %s: %w", albumID, tandemerrors.ErrTrackNotFound)
	}
	return &Collection{
		Context: core.PlaybackContext{ID: resp.Album.ID, Type: core.ContextAlbum, Name: resp.Album.Name},
		Tracks:  resp.Album.Songs.tracks(),
	}, nil
}

// FetchPlaylist returns a playlist's tracks in playlist order.
func (c *Client) FetchPlaylist(ctx context.Context, playlistID string) (*Collection, error) {
	var resp struct {
		Playlist *struct {
			ID    string         `json:"id"`
			Name  string         `json:"name"`
			Songs songConnection `json:"songs"`
		} `json:"playlist"`
	}
	vars := map[string]interface{}{"playlistId": playlistID}
	if err := c.Do(ctx, "GetPlaylist", getPlaylistQuery, vars, &resp); err != nil {
		return nil, err
	}
	if resp.Playlist == nil {
		return nil, fmt.Errorf("playlist %s: %w", playlistID, tandemerrors.ErrTrackNotFound)
	}
	return &Collection{
		Context: core.PlaybackContext{ID: resp.Playlist.ID, Type: core.ContextPlaylist, Name: resp.Playlist.Name},
		Tracks:  resp.Playlist.Songs.tracks(),
	}, nil
}

// FetchArtist returns an artist's songs in catalog order.
func (c *Client) FetchArtist(ctx context.Context, artistID string) (*Collection, error) {
	var resp struct {
		Artist *struct {
			ID    string         `json:"id"`
			Name  string         `json:"name"`
			Songs songConnection `json:"songs"`
		} `json:"artist"`
	}
	vars := map[string]interface{}{"artistId": artistID}
	if err := c.Do(ctx, "GetArtist", getArtistQuery, vars, &resp); err != nil {
		return nil, err
	}
	if resp.Artist == nil {
		return nil, fmt.Errorf("artist %s: %w", artistID, tandemerrors.ErrTrackNotFound)
	}
	return &Collection{
		Context: core.PlaybackContext{ID: resp.Artist.ID, Type: core.ContextArtist, Name: resp.Artist.Name},
		Tracks:  resp.Artist.Songs.tracks(),
	}, nil
}

// Search looks up catalog items matching query. An empty kind searches
// every type.
func (c *Client) Search(ctx context.Context, query string, kind core.ContextType) ([]core.CatalogItem, error) {
	var resp struct {
		Search *struct {
			Items []previewWire `json:"items"`
		} `json:"search"`
	}
	input := map[string]interface{}{"query": query}
	if kind != "" {
		input["type"] = string(kind)
	}
	if err := c.Do(ctx, "Search", searchQuery, map[string]interface{}{"input": input}, &resp); err != nil {
		return nil, err
	}
	if resp.Search == nil {
		return nil, nil
	}
	return previewItems(resp.Search.Items), nil
}

// Bookmarks returns the account's bookmarked albums and playlists.
func (c *Client) Bookmarks(ctx context.Context) ([]core.CatalogItem, error) {
	var resp struct {
		Bookmarks *struct {
			Edges []struct {
				Node previewWire `json:"node"`
			} `json:"edges"`
		} `json:"bookmarks"`
	}
	if err := c.Do(ctx, "GetBookmarks", getBookmarksQuery, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Bookmarks == nil {
		return nil, nil
	}
	nodes := make([]previewWire, 0, len(resp.Bookmarks.Edges))
	for _, e := range resp.Bookmarks.Edges {
		nodes = append(nodes, e.Node)
	}
	return previewItems(nodes), nil
}

// AddBookmarks bookmarks each item.
func (c *Client) AddBookmarks(ctx context.Context, items ...core.CatalogItem) error {
	inputs := make([]map[string]interface{}, 0, len(items))
	for _, it := range items {
		in := map[string]interface{}{"itemId": it.ID, "itemType": string(it.Type)}
		if it.ArtistID != "" {
			in["artistId"] = it.ArtistID
		}
		inputs = append(inputs, in)
	}
	vars := map[string]interface{}{"input": map[string]interface{}{"items": inputs}}
	return c.Do(ctx, "BookmarkAdd", bookmarkAddMutation, vars, nil)
}

// RemoveBookmarks removes the bookmarks with the given item ids.
func (c *Client) RemoveBookmarks(ctx context.Context, itemIDs ...string) error {
	vars := map[string]interface{}{"input": map[string]interface{}{"items": itemIDs}}
	return c.Do(ctx, "BookmarkRemove", bookmarkRemoveMutation, vars, nil)
}

// RecentlyPlayed returns the account-wide recently played list, newest first.
func (c *Client) RecentlyPlayed(ctx context.Context) ([]core.CatalogItem, error) {
	var resp struct {
		RecentPlayed []previewWire `json:"recentPlayed"`
	}
	if err := c.Do(ctx, "GetRecentlyPlayed", getRecentlyPlayedQuery, nil, &resp); err != nil {
		return nil, err
	}
	return previewItems(resp.RecentPlayed), nil
}
