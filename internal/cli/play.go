package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tessro/tandem/internal/core"
	"github.com/tessro/tandem/internal/engine"
	tandemerrors "github.com/tessro/tandem/internal/errors"
	"github.com/tessro/tandem/internal/tail"
)

var (
	playAlbum    string
	playPlaylist string
	playSong     string
	playArtist   string
	playAt       int
	playShuffle  bool
	playQuiet    bool
)

var playCmd = &cobra.Command{
	Use:   "play [TYPE:ID[:ARTIST][@N]]",
	Short: "Play an album, artist, playlist or song on this device",
	Long: `Play an album, artist, playlist or song here and follow the session until Ctrl+C.
This device becomes prime.

Examples:
  tandem play album:al1                 # Play an album
  tandem play album:al1:ar1@3           # Start at the third track
  tandem play --playlist pl7 --shuffle  # Shuffle a playlist
  tandem play --song s9 --artist ar1    # Play one song
  tandem play --artist ar1              # Play everything by an artist`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringVar(&playAlbum, "album", "", "album id")
	playCmd.Flags().StringVar(&playPlaylist, "playlist", "", "playlist id")
	playCmd.Flags().StringVar(&playSong, "song", "", "song id (needs --artist)")
	playCmd.Flags().StringVar(&playArtist, "artist", "", "artist id; alone, plays the artist's songs")
	playCmd.Flags().IntVar(&playAt, "at", 1, "one-based position to start at")
	playCmd.Flags().BoolVar(&playShuffle, "shuffle", false, "enable shuffle")
	playCmd.Flags().BoolVarP(&playQuiet, "quiet", "q", false, "do not print session events")
	playCmd.MarkFlagsMutuallyExclusive("album", "playlist", "song")
	rootCmd.AddCommand(playCmd)
}

// playRequest builds the request from a positional reference or the flags.
func playRequest(args []string, album, playlist, song, artist string, at int) (engine.PlayRequest, error) {
	if len(args) == 1 {
		if album != "" || playlist != "" || song != "" || artist != "" {
			return engine.PlayRequest{}, fmt.Errorf("%w: give a reference or a flag, not both", tandemerrors.ErrInvalidConfig)
		}
		return engine.ParseRequest(args[0])
	}
	if at < 1 {
		return engine.PlayRequest{}, fmt.Errorf("%w: --at must be at least 1", tandemerrors.ErrInvalidConfig)
	}

	req := engine.PlayRequest{ArtistID: artist, Index: at - 1}
	switch {
	case album != "":
		req.Type, req.ID = core.ContextAlbum, album
	case playlist != "":
		req.Type, req.ID = core.ContextPlaylist, playlist
	case song != "":
		if artist == "" {
			return req, fmt.Errorf("%w: --song needs --artist", tandemerrors.ErrInvalidConfig)
		}
		req.Type, req.ID = core.ContextSong, song
	case artist != "":
		req.Type, req.ID = core.ContextArtist, artist
	default:
		return req, fmt.Errorf("%w: nothing to play, pass a reference or --album, --artist, --playlist or --song", tandemerrors.ErrInvalidConfig)
	}
	return req, nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	req, err := playRequest(args, playAlbum, playPlaylist, playSong, playArtist, playAt)
	if err != nil {
		return err
	}

	ctx, cancel := interruptible(cmd.Context())
	defer cancel()

	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	watcher := tail.NewWatcher(e.Scheduler, 0)
	e.Registry.OnSeen(watcher.DeviceSeen)

	wait := startEngine(ctx, e)
	defer wait()

	e.ClaimPrime()
	if playShuffle && !e.Scheduler.Snapshot().Shuffle {
		e.Scheduler.ToggleShuffle()
	}
	if err := e.Play(ctx, req); err != nil {
		cancel()
		return fmt.Errorf("failed to play %s %s: %w", req.Type, req.ID, err)
	}

	if playQuiet {
		<-ctx.Done()
		return nil
	}
	formatter := tail.NewFormatter(tail.WithLocalDevice(e.Device.ID))
	fmt.Println(formatter.Format(tail.Event{Type: tail.EventTrackChange, Current: core.Ptr(e.Scheduler.Snapshot())}))
	return follow(ctx, watcher, formatter)
}
