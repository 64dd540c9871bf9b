package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tessro/tandem/internal/core"
	"github.com/tessro/tandem/internal/engine"
	tandemerrors "github.com/tessro/tandem/internal/errors"
)

var searchType string

var searchCmd = &cobra.Command{
	Use:   "search QUERY...",
	Short: "Search the catalog",
	Long: `Search albums, artists, playlists and songs. Each result shows the
reference to pass to "tandem play".

Examples:
  tandem search daft punk
  tandem search --type album discovery`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var bookmarksCmd = &cobra.Command{
	Use:     "bookmarks",
	Aliases: []string{"bm"},
	Short:   "List bookmarked albums and playlists",
	Args:    cobra.NoArgs,
	RunE:    runBookmarks,
}

var bookmarksAddCmd = &cobra.Command{
	Use:   "add TYPE:ID[:ARTIST]...",
	Short: "Bookmark albums or playlists",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBookmarksAdd,
}

var bookmarksRemoveCmd = &cobra.Command{
	Use:     "remove ID...",
	Aliases: []string{"rm"},
	Short:   "Remove bookmarks",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runBookmarksRemove,
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show what this account played recently, on any device",
	Args:  cobra.NoArgs,
	RunE:  runRecent,
}

func init() {
	searchCmd.Flags().StringVarP(&searchType, "type", "t", "", "limit results to album, artist, playlist or song")
	bookmarksCmd.AddCommand(bookmarksAddCmd, bookmarksRemoveCmd)
	rootCmd.AddCommand(searchCmd, bookmarksCmd, recentCmd)
}

// parseSearchType maps a --type value to a context type. Empty means all.
func parseSearchType(s string) (core.ContextType, error) {
	if s == "" {
		return "", nil
	}
	t := core.ContextType(strings.ToUpper(s))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown type %q, want album, artist, playlist or song", tandemerrors.ErrInvalidConfig, s)
	}
	return t, nil
}

// bookmarkItem reads a play reference into the item to bookmark.
func bookmarkItem(ref string) (core.CatalogItem, error) {
	req, err := engine.ParseRequest(ref)
	if err != nil {
		return core.CatalogItem{}, err
	}
	item := core.CatalogItem{Type: req.Type, ID: req.ID}
	if req.Type != core.ContextArtist {
		item.ArtistID = req.ArtistID
	}
	return item, nil
}

// renderItems prints catalog items with the reference that plays each one.
func renderItems(out io.Writer, items []core.CatalogItem) {
	table := NewTableWriter(out, "TYPE", "NAME", "ARTIST", "PLAY")
	for _, it := range items {
		artist := it.ArtistName
		if artist == "" && it.Type != core.ContextArtist {
			artist = it.ArtistID
		}
		table.Row(
			strings.ToLower(string(it.Type)),
			TruncateString(it.Name, 40),
			TruncateString(artist, 30),
			it.Ref(),
		)
	}
	table.Flush()
}

func printItems(items []core.CatalogItem, empty string) error {
	if jsonOut {
		if items == nil {
			items = []core.CatalogItem{}
		}
		return printJSON(os.Stdout, items)
	}
	if len(items) == 0 {
		fmt.Println(empty)
		return nil
	}
	renderItems(os.Stdout, items)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	kind, err := parseSearchType(searchType)
	if err != nil {
		return err
	}
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return fmt.Errorf("%w: empty search", tandemerrors.ErrInvalidConfig)
	}

	gw, err := newGateway()
	if err != nil {
		return err
	}
	items, err := gw.Search(cmd.Context(), query, kind)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return printItems(items, fmt.Sprintf("No results for %q", query))
}

func runBookmarks(cmd *cobra.Command, args []string) error {
	gw, err := newGateway()
	if err != nil {
		return err
	}
	items, err := gw.Bookmarks(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list bookmarks: %w", err)
	}
	return printItems(items, "No bookmarks")
}

func runBookmarksAdd(cmd *cobra.Command, args []string) error {
	items := make([]core.CatalogItem, 0, len(args))
	for _, ref := range args {
		item, err := bookmarkItem(ref)
		if err != nil {
			return err
		}
		items = append(items, item)
	}

	gw, err := newGateway()
	if err != nil {
		return err
	}
	if err := gw.AddBookmarks(cmd.Context(), items...); err != nil {
		return fmt.Errorf("failed to add bookmarks: %w", err)
	}
	if !jsonOut {
		fmt.Printf("✓ Bookmarked %d item(s)\n", len(items))
	}
	return nil
}

func runBookmarksRemove(cmd *cobra.Command, args []string) error {
	gw, err := newGateway()
	if err != nil {
		return err
	}
	if err := gw.RemoveBookmarks(cmd.Context(), args...); err != nil {
		return fmt.Errorf("failed to remove bookmarks: %w", err)
	}
	if !jsonOut {
		fmt.Printf("✓ Removed %d bookmark(s)\n", len(args))
	}
	return nil
}

func runRecent(cmd *cobra.Command, args []string) error {
	gw, err := newGateway()
	if err != nil {
		return err
	}
	items, err := gw.RecentlyPlayed(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch recently played: %w", err)
	}
	return printItems(items, "Nothing played recently")
}
