package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"music-bot-go/delivery"
	"music-bot-go/gemini"
	"music-bot-go/logcolors"
	"music-bot-go/reels"
	"music-bot-go/scheduler"
	"music-bot-go/search"
	"music-bot-go/search/providers"
	"music-bot-go/session"
	"music-bot-go/stats"
	"music-bot-go/tracks"

	log "github.com/sirupsen/logrus"
)

// Incoming is a queued text message, carried as the scheduler payload.
type Incoming struct {
	ChatID    int64
	MessageID int
	UserID    string
	Text      string
}

// Callback is a pressed inline keyboard button.
type Callback struct {
	ID        string
	ChatID    int64
	MessageID int
	UserID    string
	Data      string
}

type classifier interface {
	Classify(ctx context.Context, text string) gemini.Result
	ChatReply(ctx context.Context, text string) (string, error)
}

type searcher interface {
	Search(ctx context.Context, query string, durationHint int) search.Outcome
}

type sessionStore interface {
	Create(chatKey string, tracks []providers.Track) (*session.Session, error)
	NextPage(id string) (*session.Session, error)
	PrevPage(id string) (*session.Session, error)
	Select(id string, index int) (providers.Track, error)
	Cancel(id string) error
}

type trackResolvers interface {
	Get(service string) (tracks.Resolver, error)
}

type reelsPipeline interface {
	ProcessPost(ctx context.Context, userID, shortcode, postURL string) (*reels.Delivery, error)
	RecordUpload(shortcode, postURL, ownerUsername, fileID string)
	Authorize(ctx context.Context, userID, username, password string) error
	Logout(userID string) bool
}

// Router turns classified messages into work for the domain services and
// reports back through the messenger. It is the scheduler's handler, so at
// most one message per key is processed at a time.
type Router struct {
	messenger delivery.Messenger
	brain     classifier
	searcher  searcher
	sessions  sessionStore
	resolvers trackResolvers
	reels     reelsPipeline
	download  func(ctx context.Context, url string) ([]byte, error)
}

func NewRouter(
	messenger delivery.Messenger,
	brain classifier,
	agg searcher,
	sessions sessionStore,
	resolvers trackResolvers,
	reelsSvc reelsPipeline,
) *Router {
	return &Router{
		messenger: messenger,
		brain:     brain,
		searcher:  agg,
		sessions:  sessions,
		resolvers: resolvers,
		reels:     reelsSvc,
		download:  search.DownloadAudio,
	}
}

// Handle processes one queued message.
func (r *Router) Handle(ctx context.Context, req scheduler.Request) error {
	in, ok := req.Payload.(Incoming)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", req.Payload)
	}

	if strings.HasPrefix(in.Text, "/") {
		return r.handleCommand(ctx, in)
	}

	statusID, err := r.messenger.Notify(ctx, in.ChatID, "Processing your request...")
	if err != nil {
		return fmt.Errorf("sending status message: %w", err)
	}

	result := r.brain.Classify(ctx, in.Text)
	log.Infof("%s Message from %s classified as %s", logcolors.LogBot, in.UserID, result.Intent)
	stats.Get().RecordIntent(string(result.Intent))

	switch result.Intent {
	case gemini.IntentChat:
		return r.handleChat(ctx, in, statusID, result.ChatText)
	case gemini.IntentSong:
		return r.handleSong(ctx, in, statusID, result.Song.Song, result.Song.Duration, nil)
	case gemini.IntentMusicServiceLink:
		return r.handleMusicLink(ctx, in, statusID, result.MusicLink)
	case gemini.IntentInstagramLink:
		return r.handleReel(ctx, in, statusID, result.Instagram.Shortcode)
	}
	return r.messenger.Edit(ctx, in.ChatID, statusID, "I did not understand that. Try sending a song name or a link.", nil)
}

// handleChat asks the model for a free-form answer. Classification failures
// land here too, so text carries the user's message as-is.
func (r *Router) handleChat(ctx context.Context, in Incoming, statusID int, text string) error {
	reply, err := r.brain.ChatReply(ctx, text)
	if err != nil {
		log.Errorf("%s Chat reply failed: %v", logcolors.LogChat, err)
		editErr := r.messenger.Edit(ctx, in.ChatID, statusID, "The assistant is unavailable right now. Try again later.", nil)
		if editErr != nil {
			return editErr
		}
		return err
	}
	return r.messenger.Edit(ctx, in.ChatID, statusID, reply, nil)
}

func (r *Router) handleSong(ctx context.Context, in Incoming, statusID int, query string, durationHint int, info *tracks.TrackInfo) error {
	outcome := r.searcher.Search(ctx, query, durationHint)

	switch outcome.Kind {
	case search.OutcomeEmpty:
		stats.Get().RecordEmptySearch()
		return r.messenger.Edit(ctx, in.ChatID, statusID, fmt.Sprintf("Nothing found for %q.", query), nil)

	case search.OutcomeResolved:
		return r.deliverTrack(ctx, in, statusID, outcome.Track, info)

	case search.OutcomeChoices:
		sess, err := r.sessions.Create(strconv.FormatInt(in.ChatID, 10), outcome.Choices)
		if err != nil {
			return fmt.Errorf("creating selection session: %w", err)
		}
		// The list goes out as its own message so later page flips edit it
		// without fighting the status text.
		if err := r.messenger.Delete(ctx, in.ChatID, statusID); err != nil {
			log.Warnf("%s Could not delete status message: %v", logcolors.LogBot, err)
		}
		_, err = r.messenger.NotifyWithKeyboard(ctx, in.ChatID, pageText(sess), pageKeyboard(sess))
		return err
	}
	return nil
}

func (r *Router) handleMusicLink(ctx context.Context, in Incoming, statusID int, link *gemini.MusicServiceLink) error {
	resolver, err := r.resolvers.Get(link.Service)
	if err != nil {
		return r.messenger.Edit(ctx, in.ChatID, statusID, "That streaming service is not supported.", nil)
	}

	info, err := resolver.Resolve(ctx, link.TrackID, in.Text)
	if err != nil {
		log.Errorf("%s Resolving %s track %s: %v", logcolors.LogTracks, link.Service, link.TrackID, err)
		editErr := r.messenger.Edit(ctx, in.ChatID, statusID, "Could not read the track from that link.", nil)
		if editErr != nil {
			return editErr
		}
		return err
	}

	if err := r.messenger.Edit(ctx, in.ChatID, statusID, fmt.Sprintf("Found %s. Searching sources...", info.Query()), nil); err != nil {
		return err
	}
	return r.handleSong(ctx, in, statusID, info.Query(), info.Duration, info)
}

// deliverTrack downloads the audio and uploads it with full tags. The status
// message is removed once the track is on its way.
func (r *Router) deliverTrack(ctx context.Context, in Incoming, statusID int, track providers.Track, info *tracks.TrackInfo) error {
	if err := r.messenger.Edit(ctx, in.ChatID, statusID, fmt.Sprintf("Downloading %s - %s...", track.Artist, track.Title), nil); err != nil {
		return err
	}

	data, err := r.download(ctx, track.Link)
	if err != nil {
		log.Errorf("%s Downloading %q: %v", logcolors.LogDownload, track.Link, err)
		editErr := r.messenger.Edit(ctx, in.ChatID, statusID, "The download failed, try another result.", nil)
		if editErr != nil {
			return editErr
		}
		return err
	}

	audio := delivery.Audio{
		Data:      data,
		FileName:  fmt.Sprintf("%s - %s.mp3", track.Artist, track.Title),
		Title:     track.Title,
		Performer: track.Artist,
		Duration:  track.Duration,
	}
	if info != nil {
		audio.ThumbURL = info.CoverURL
		if info.AlbumTitle != "" {
			audio.Caption = strings.TrimSpace(info.AlbumTitle + " " + info.AlbumYear)
		}
	}

	if _, err := r.messenger.SendAudio(ctx, in.ChatID, audio); err != nil {
		return fmt.Errorf("sending audio: %w", err)
	}
	stats.Get().RecordTrackDelivered()
	return r.messenger.Delete(ctx, in.ChatID, statusID)
}

func (r *Router) handleReel(ctx context.Context, in Incoming, statusID int, shortcode string) error {
	postURL := canonicalPostURL(in.Text, shortcode)

	d, err := r.reels.ProcessPost(ctx, in.UserID, shortcode, postURL)
	switch {
	case errors.Is(err, reels.ErrLoginRequired):
		return r.messenger.Edit(ctx, in.ChatID, statusID, "Instagram login needed. Send /igpass <username> <password>.", nil)
	case errors.Is(err, reels.ErrNotAVideo):
		return r.messenger.Edit(ctx, in.ChatID, statusID, "That post has no video.", nil)
	case err != nil:
		editErr := r.messenger.Edit(ctx, in.ChatID, statusID, "Could not fetch that post.", nil)
		if editErr != nil {
			return editErr
		}
		return err
	}

	caption := "@" + d.OwnerUsername
	switch d.Kind {
	case reels.DeliverCachedVideo:
		if err := r.messenger.SendVideoByFileID(ctx, in.ChatID, d.FileID, caption); err != nil {
			return err
		}
		stats.Get().RecordHistoryHit()
		stats.Get().RecordVideoDelivered()
	case reels.DeliverVideoURL:
		fileID, err := r.messenger.SendVideoByURL(ctx, in.ChatID, d.VideoURL, caption+d.Note)
		if err != nil {
			return err
		}
		if fileID != "" {
			r.reels.RecordUpload(d.Shortcode, d.PostURL, d.OwnerUsername, fileID)
		}
		stats.Get().RecordVideoDelivered()
	case reels.DeliverFallbackLink:
		text := "This post cannot be sent directly"
		if d.Reason == "too_large" && d.SizeMB != "" {
			text = fmt.Sprintf("The video is too large (%s MB)", d.SizeMB)
		} else if d.Reason == "carousel" {
			text = "Multi-part posts cannot be sent directly"
		}
		return r.messenger.Edit(ctx, in.ChatID, statusID, fmt.Sprintf("%s. Download it here: %s", text, d.FallbackURL), nil)
	}
	return r.messenger.Delete(ctx, in.ChatID, statusID)
}

// canonicalPostURL prefers the link the user actually sent; when the message
// is not a recognizable post link, one is rebuilt from the shortcode.
func canonicalPostURL(text, shortcode string) string {
	for _, field := range strings.Fields(text) {
		if _, ok := reels.ShortcodeFromURL(field); ok {
			return field
		}
	}
	return "https://www.instagram.com/reel/" + shortcode + "/"
}
