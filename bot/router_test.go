package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"music-bot-go/delivery"
	"music-bot-go/gemini"
	"music-bot-go/reels"
	"music-bot-go/scheduler"
	"music-bot-go/search"
	"music-bot-go/search/providers"
	"music-bot-go/session"
	"music-bot-go/tracks"
)

type sentAudio struct {
	chatID int64
	audio  delivery.Audio
}

type edit struct {
	messageID int
	text      string
	keyboard  delivery.Keyboard
}

// fakeMessenger records every outbound call.
type fakeMessenger struct {
	nextID    int
	notified  []string
	edits     []edit
	deleted   []int
	audios    []sentAudio
	videoURLs []string
	fileIDs   []string
	answered  []string

	lastKeyboard delivery.Keyboard
	delayed      []int

	videoFileID string
}

func (m *fakeMessenger) Notify(_ context.Context, _ int64, text string) (int, error) {
	m.nextID++
	m.notified = append(m.notified, text)
	return m.nextID, nil
}

func (m *fakeMessenger) NotifyWithKeyboard(ctx context.Context, chatID int64, text string, kb delivery.Keyboard) (int, error) {
	m.lastKeyboard = kb
	return m.Notify(ctx, chatID, text)
}

func (m *fakeMessenger) Edit(_ context.Context, _ int64, messageID int, text string, kb delivery.Keyboard) error {
	m.edits = append(m.edits, edit{messageID: messageID, text: text, keyboard: kb})
	return nil
}

func (m *fakeMessenger) Delete(_ context.Context, _ int64, messageID int) error {
	m.deleted = append(m.deleted, messageID)
	return nil
}

func (m *fakeMessenger) DeleteAfter(_ context.Context, _ int64, messageID int, _ time.Duration) {
	m.delayed = append(m.delayed, messageID)
}

func (m *fakeMessenger) SendAudio(_ context.Context, chatID int64, audio delivery.Audio) (int, error) {
	m.audios = append(m.audios, sentAudio{chatID: chatID, audio: audio})
	m.nextID++
	return m.nextID, nil
}

func (m *fakeMessenger) SendVideoByURL(_ context.Context, _ int64, url, _ string) (string, error) {
	m.videoURLs = append(m.videoURLs, url)
	return m.videoFileID, nil
}

func (m *fakeMessenger) SendVideoByFileID(_ context.Context, _ int64, fileID, _ string) error {
	m.fileIDs = append(m.fileIDs, fileID)
	return nil
}

func (m *fakeMessenger) AnswerCallback(_ context.Context, _, text string) error {
	m.answered = append(m.answered, text)
	return nil
}

func (m *fakeMessenger) lastEdit(t *testing.T) edit {
	t.Helper()
	if len(m.edits) == 0 {
		t.Fatal("Expected at least one edit")
	}
	return m.edits[len(m.edits)-1]
}

type fakeClassifier struct {
	result    gemini.Result
	reply     string
	replyErr  error
	chatAsked []string
}

func (c *fakeClassifier) Classify(context.Context, string) gemini.Result { return c.result }
func (c *fakeClassifier) ChatReply(_ context.Context, text string) (string, error) {
	c.chatAsked = append(c.chatAsked, text)
	return c.reply, c.replyErr
}

type fakeSearcher struct {
	outcome   search.Outcome
	lastQuery string
	lastHint  int
}

func (s *fakeSearcher) Search(_ context.Context, query string, hint int) search.Outcome {
	s.lastQuery, s.lastHint = query, hint
	return s.outcome
}

type fakeSessions struct {
	created  *session.Session
	selected providers.Track
	err      error
	calls    []string
}

func (s *fakeSessions) Create(chatKey string, tracks []providers.Track) (*session.Session, error) {
	s.calls = append(s.calls, "create")
	s.created = &session.Session{ID: "sid", ChatKey: chatKey, Tracks: tracks, PageSize: 5}
	return s.created, s.err
}

func (s *fakeSessions) NextPage(string) (*session.Session, error) {
	s.calls = append(s.calls, "next")
	return s.created, s.err
}

func (s *fakeSessions) PrevPage(string) (*session.Session, error) {
	s.calls = append(s.calls, "prev")
	return s.created, s.err
}

func (s *fakeSessions) Select(string, int) (providers.Track, error) {
	s.calls = append(s.calls, "select")
	return s.selected, s.err
}

func (s *fakeSessions) Cancel(string) error {
	s.calls = append(s.calls, "cancel")
	return s.err
}

type fakeResolver struct {
	info *tracks.TrackInfo
	err  error
}

func (f *fakeResolver) Service() string { return "yandex" }
func (f *fakeResolver) Resolve(context.Context, string, string) (*tracks.TrackInfo, error) {
	return f.info, f.err
}

type fakeResolvers struct {
	resolver tracks.Resolver
}

func (f *fakeResolvers) Get(service string) (tracks.Resolver, error) {
	if f.resolver == nil || service != "yandex" {
		return nil, errors.New("unsupported service")
	}
	return f.resolver, nil
}

type fakeReels struct {
	delivery *reels.Delivery
	err      error
	recorded []string
	authErr  error
	loggedIn bool
}

func (f *fakeReels) ProcessPost(context.Context, string, string, string) (*reels.Delivery, error) {
	return f.delivery, f.err
}

func (f *fakeReels) RecordUpload(shortcode, _, _, fileID string) {
	f.recorded = append(f.recorded, shortcode+"="+fileID)
}

func (f *fakeReels) Authorize(context.Context, string, string, string) error { return f.authErr }
func (f *fakeReels) Logout(string) bool                                      { return f.loggedIn }

type fixtures struct {
	messenger *fakeMessenger
	brain     *fakeClassifier
	searcher  *fakeSearcher
	sessions  *fakeSessions
	resolvers *fakeResolvers
	reels     *fakeReels
	router    *Router
}

func setup(t *testing.T) *fixtures {
	t.Helper()
	f := &fixtures{
		messenger: &fakeMessenger{},
		brain:     &fakeClassifier{},
		searcher:  &fakeSearcher{},
		sessions:  &fakeSessions{},
		resolvers: &fakeResolvers{},
		reels:     &fakeReels{},
	}
	f.router = NewRouter(f.messenger, f.brain, f.searcher, f.sessions, f.resolvers, f.reels)
	f.router.download = func(context.Context, string) ([]byte, error) {
		return []byte("audio-bytes"), nil
	}
	return f
}

func handle(t *testing.T, f *fixtures, text string) error {
	t.Helper()
	return f.router.Handle(context.Background(), scheduler.Request{
		Key:     "user1",
		Text:    text,
		Payload: Incoming{ChatID: 100, MessageID: 7, UserID: "user1", Text: text},
	})
}

func TestChatIntentAnswersWithModelReply(t *testing.T) {
	f := setup(t)
	f.brain.result = gemini.Result{Intent: gemini.IntentChat, ChatText: "what is the capital of France?"}
	f.brain.reply = "Paris is the capital of France."

	if err := handle(t, f, "what is the capital of France?"); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(f.brain.chatAsked) != 1 || f.brain.chatAsked[0] != "what is the capital of France?" {
		t.Fatalf("Expected the question forwarded to the model, got %v", f.brain.chatAsked)
	}
	if got := f.messenger.lastEdit(t); got.text != "Paris is the capital of France." {
		t.Errorf("Expected the model's answer in the status edit, got %q", got.text)
	}
}

func TestChatReplyFailureReported(t *testing.T) {
	f := setup(t)
	f.brain.result = gemini.Result{Intent: gemini.IntentChat, ChatText: "hi"}
	f.brain.replyErr = errors.New("quota exceeded")

	if err := handle(t, f, "hi"); err == nil {
		t.Fatal("Expected the chat failure surfaced to the scheduler")
	}
	if got := f.messenger.lastEdit(t); !strings.Contains(got.text, "unavailable") {
		t.Errorf("Expected an unavailable notice, got %q", got.text)
	}
}

func TestSongResolvedSendsAudio(t *testing.T) {
	f := setup(t)
	f.brain.result = gemini.Result{Intent: gemini.IntentSong, Song: &gemini.SongQuery{Song: "kino gruppa krovi", Duration: 285}}
	f.searcher.outcome = search.Outcome{
		Kind:  search.OutcomeResolved,
		Track: providers.Track{Link: "http://a/x.mp3", Artist: "Кино", Title: "Группа крови", Duration: 285},
	}

	if err := handle(t, f, "kino gruppa krovi"); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if f.searcher.lastQuery != "kino gruppa krovi" || f.searcher.lastHint != 285 {
		t.Errorf("Unexpected search call %q hint %d", f.searcher.lastQuery, f.searcher.lastHint)
	}
	if len(f.messenger.audios) != 1 {
		t.Fatalf("Expected one audio send, got %d", len(f.messenger.audios))
	}
	audio := f.messenger.audios[0].audio
	if audio.Performer != "Кино" || audio.Title != "Группа крови" || audio.Duration != 285 {
		t.Errorf("Unexpected audio tags %+v", audio)
	}
	if len(f.messenger.deleted) != 1 {
		t.Errorf("Expected the status message removed after delivery")
	}
}

func TestSongChoicesShowsKeyboard(t *testing.T) {
	f := setup(t)
	f.brain.result = gemini.Result{Intent: gemini.IntentSong, Song: &gemini.SongQuery{Song: "q"}}
	f.searcher.outcome = search.Outcome{
		Kind: search.OutcomeChoices,
		Choices: []providers.Track{
			{Link: "l1", Artist: "A", Title: "T1", Duration: 100},
			{Link: "l2", Artist: "B", Title: "T2", Duration: 200},
		},
	}

	if err := handle(t, f, "q"); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(f.messenger.deleted) != 1 {
		t.Errorf("Expected the status message replaced by the list, deleted %v", f.messenger.deleted)
	}
	kb := f.messenger.lastKeyboard
	if len(kb) != 3 {
		t.Fatalf("Expected 2 track rows plus navigation, got %d rows", len(kb))
	}
	if kb[0][0].Data != "select:sid:0" {
		t.Errorf("Unexpected first button data %q", kb[0][0].Data)
	}
	nav := kb[2]
	if len(nav) != 1 || nav[0].Label != "Cancel" {
		t.Errorf("Single page must only offer Cancel, got %+v", nav)
	}
	if last := f.messenger.notified[len(f.messenger.notified)-1]; !strings.Contains(last, "Select a track") {
		t.Errorf("Unexpected list header %q", last)
	}
}

func TestSongEmpty(t *testing.T) {
	f := setup(t)
	f.brain.result = gemini.Result{Intent: gemini.IntentSong, Song: &gemini.SongQuery{Song: "nothing"}}
	f.searcher.outcome = search.Outcome{Kind: search.OutcomeEmpty}

	if err := handle(t, f, "nothing"); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if got := f.messenger.lastEdit(t); !strings.Contains(got.text, "Nothing found") {
		t.Errorf("Expected a not-found edit, got %q", got.text)
	}
}

func TestMusicLinkResolvesThenSearches(t *testing.T) {
	f := setup(t)
	f.brain.result = gemini.Result{
		Intent:    gemini.IntentMusicServiceLink,
		MusicLink: &gemini.MusicServiceLink{Service: "yandex", TrackID: "42"},
	}
	f.resolvers.resolver = &fakeResolver{info: &tracks.TrackInfo{
		Artist: "Кино", Title: "Кукушка", Duration: 398,
		CoverURL: "https://c/400x400", AlbumTitle: "Чёрный альбом", AlbumYear: "(1990)",
	}}
	f.searcher.outcome = search.Outcome{
		Kind:  search.OutcomeResolved,
		Track: providers.Track{Link: "l", Artist: "Кино", Title: "Кукушка", Duration: 397},
	}

	if err := handle(t, f, "https://music.yandex.ru/album/1/track/42"); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if f.searcher.lastQuery != "Кино - Кукушка" || f.searcher.lastHint != 398 {
		t.Errorf("Expected the resolved identity to drive the search, got %q/%d", f.searcher.lastQuery, f.searcher.lastHint)
	}
	audio := f.messenger.audios[0].audio
	if audio.ThumbURL != "https://c/400x400" {
		t.Errorf("Expected the album cover as thumbnail, got %q", audio.ThumbURL)
	}
	if !strings.Contains(audio.Caption, "Чёрный альбом") || !strings.Contains(audio.Caption, "(1990)") {
		t.Errorf("Expected album caption, got %q", audio.Caption)
	}
}

func TestMusicLinkUnsupportedService(t *testing.T) {
	f := setup(t)
	f.brain.result = gemini.Result{
		Intent:    gemini.IntentMusicServiceLink,
		MusicLink: &gemini.MusicServiceLink{Service: "spotify", TrackID: "1"},
	}

	if err := handle(t, f, "link"); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if got := f.messenger.lastEdit(t); !strings.Contains(got.text, "not supported") {
		t.Errorf("Expected an unsupported-service message, got %q", got.text)
	}
}

func TestReelDeliveredByURLRecordsFileID(t *testing.T) {
	f := setup(t)
	f.brain.result = gemini.Result{Intent: gemini.IntentInstagramLink, Instagram: &gemini.InstagramLink{Shortcode: "ABC"}}
	f.reels.delivery = &reels.Delivery{
		Kind: reels.DeliverVideoURL, Shortcode: "ABC", PostURL: "p", OwnerUsername: "owner",
		VideoURL: "http://cdn/v.mp4",
	}
	f.messenger.videoFileID = "fid-1"

	if err := handle(t, f, "https://www.instagram.com/reel/ABC/"); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(f.messenger.videoURLs) != 1 || f.messenger.videoURLs[0] != "http://cdn/v.mp4" {
		t.Errorf("Expected the video sent by URL, got %v", f.messenger.videoURLs)
	}
	if len(f.reels.recorded) != 1 || f.reels.recorded[0] != "ABC=fid-1" {
		t.Errorf("Expected the file id recorded, got %v", f.reels.recorded)
	}
}

func TestReelLoginRequired(t *testing.T) {
	f := setup(t)
	f.brain.result = gemini.Result{Intent: gemini.IntentInstagramLink, Instagram: &gemini.InstagramLink{Shortcode: "ABC"}}
	f.reels.err = reels.ErrLoginRequired

	if err := handle(t, f, "https://www.instagram.com/reel/ABC/"); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if got := f.messenger.lastEdit(t); !strings.Contains(got.text, "/igpass") {
		t.Errorf("Expected a login hint, got %q", got.text)
	}
}

func TestReelFallbackLink(t *testing.T) {
	f := setup(t)
	f.brain.result = gemini.Result{Intent: gemini.IntentInstagramLink, Instagram: &gemini.InstagramLink{Shortcode: "ABC"}}
	f.reels.delivery = &reels.Delivery{
		Kind: reels.DeliverFallbackLink, Reason: "too_large", SizeMB: "61.20",
		FallbackURL: "https://dl/?u=x", OwnerUsername: "owner",
	}

	if err := handle(t, f, "https://www.instagram.com/reel/ABC/"); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	got := f.messenger.lastEdit(t)
	if !strings.Contains(got.text, "61.20 MB") || !strings.Contains(got.text, "https://dl/?u=x") {
		t.Errorf("Expected size and fallback link, got %q", got.text)
	}
}

func TestCommandLoginDeletesCredentials(t *testing.T) {
	f := setup(t)

	if err := handle(t, f, "/igpass user secret"); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(f.messenger.deleted) != 1 || f.messenger.deleted[0] != 7 {
		t.Errorf("Expected the credentials message deleted, got %v", f.messenger.deleted)
	}
	if len(f.messenger.notified) == 0 || !strings.Contains(f.messenger.notified[len(f.messenger.notified)-1], "Logged in") {
		t.Errorf("Expected a success reply, got %v", f.messenger.notified)
	}
	if len(f.messenger.delayed) != 1 {
		t.Errorf("Expected the confirmation scheduled for removal, got %v", f.messenger.delayed)
	}
}

func TestCommandLogout(t *testing.T) {
	f := setup(t)
	f.reels.loggedIn = true

	if err := handle(t, f, "/iglogout"); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !strings.Contains(f.messenger.notified[0], "forgotten") {
		t.Errorf("Expected a logout confirmation, got %v", f.messenger.notified)
	}
}

func TestCallbackSelectDeliversTrack(t *testing.T) {
	f := setup(t)
	f.sessions.selected = providers.Track{Link: "l", Artist: "A", Title: "T", Duration: 10}

	cb := Callback{ID: "cb1", ChatID: 100, MessageID: 5, UserID: "user1", Data: "select:sid:3"}
	if err := f.router.HandleCallback(context.Background(), cb); err != nil {
		t.Fatalf("HandleCallback failed: %v", err)
	}
	if len(f.messenger.audios) != 1 {
		t.Fatalf("Expected the selected track sent, got %d audios", len(f.messenger.audios))
	}
	if f.sessions.calls[0] != "select" {
		t.Errorf("Expected a session select, got %v", f.sessions.calls)
	}
}

func TestCallbackSelectExpired(t *testing.T) {
	f := setup(t)
	f.sessions.err = session.ErrExpired

	cb := Callback{ID: "cb1", ChatID: 100, MessageID: 5, Data: "select:sid:0"}
	if err := f.router.HandleCallback(context.Background(), cb); err != nil {
		t.Fatalf("HandleCallback failed: %v", err)
	}
	if got := f.messenger.lastEdit(t); !strings.Contains(got.text, "expired") {
		t.Errorf("Expected an expiry edit, got %q", got.text)
	}
	if f.messenger.answered[len(f.messenger.answered)-1] != "Session expired" {
		t.Errorf("Expected an expiry toast, got %v", f.messenger.answered)
	}
}

func TestCallbackNavigation(t *testing.T) {
	f := setup(t)
	f.sessions.Create("100", []providers.Track{
		{Artist: "A", Title: "T1"}, {Artist: "B", Title: "T2"},
	})

	cb := Callback{ID: "cb1", ChatID: 100, MessageID: 5, Data: "next:sid"}
	if err := f.router.HandleCallback(context.Background(), cb); err != nil {
		t.Fatalf("HandleCallback failed: %v", err)
	}
	if f.sessions.calls[len(f.sessions.calls)-1] != "next" {
		t.Errorf("Expected a next-page call, got %v", f.sessions.calls)
	}
	if got := f.messenger.lastEdit(t); len(got.keyboard) == 0 {
		t.Error("Expected the keyboard re-rendered on navigation")
	}
}

func TestCallbackCancel(t *testing.T) {
	f := setup(t)

	cb := Callback{ID: "cb1", ChatID: 100, MessageID: 5, Data: "cancel:sid"}
	if err := f.router.HandleCallback(context.Background(), cb); err != nil {
		t.Fatalf("HandleCallback failed: %v", err)
	}
	if f.sessions.calls[0] != "cancel" {
		t.Errorf("Expected a cancel call, got %v", f.sessions.calls)
	}
	if got := f.messenger.lastEdit(t); got.text != "Search cancelled." {
		t.Errorf("Unexpected cancel edit %q", got.text)
	}
}

func TestParseCallback(t *testing.T) {
	action, sid, idx, err := parseCallback("select:abc:4")
	if err != nil || action != actionSelect || sid != "abc" || idx != 4 {
		t.Errorf("Unexpected parse %q %q %d %v", action, sid, idx, err)
	}
	if _, _, _, err := parseCallback("select:abc:x"); err == nil {
		t.Error("Expected an error for a non-numeric index")
	}
	if _, _, _, err := parseCallback("garbage"); err == nil {
		t.Error("Expected an error for malformed data")
	}
}
