package gemini

import (
	"encoding/json"
	"regexp"
	"strings"

	"music-bot-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// Intent is the classified kind of an inbound message.
type Intent string

const (
	IntentInstagramLink    Intent = "instagram_link"
	IntentMusicServiceLink Intent = "music_service_link"
	IntentSong             Intent = "song"
	IntentChat             Intent = "chat"
)

// Result is a parsed classification. Exactly one of the payload fields
// matching the intent is set; IntentChat carries the text to answer.
type Result struct {
	Intent    Intent
	Instagram *InstagramLink
	MusicLink *MusicServiceLink
	Song      *SongQuery
	ChatText  string
}

// InstagramLink identifies a post by its shortcode.
type InstagramLink struct {
	Shortcode string `json:"shortcode"`
}

// MusicServiceLink identifies a track on a streaming service.
type MusicServiceLink struct {
	Service string `json:"service"`
	TrackID string `json:"track_id"`
}

// SongQuery is a free-text search request, normalized by the classifier.
type SongQuery struct {
	Song     string `json:"song"`
	Duration int    `json:"duration"`
}

func chatResult(text string) Result {
	return Result{Intent: IntentChat, ChatText: text}
}

var markdownFence = regexp.MustCompile("(?s)^\\s*```(?:json)?\\s*|\\s*```\\s*$")

// ParseClassification turns the model's raw reply into a Result. The reply
// may be wrapped in a markdown fence and may carry trailing junk after the
// first JSON object; anything unusable degrades to a chat classification of
// the original input.
func ParseClassification(raw, originalInput string) Result {
	cleaned := strings.TrimSpace(markdownFence.ReplaceAllString(raw, ""))
	if cleaned == "" {
		log.Errorf("%s Empty classifier reply (raw %q)", logcolors.LogClassify, raw)
		return chatResult(originalInput)
	}

	var wire struct {
		Type    string          `json:"type"`
		Content json.RawMessage `json:"content"`
	}
	dec := json.NewDecoder(strings.NewReader(cleaned))
	if err := dec.Decode(&wire); err != nil {
		log.Errorf("%s Undecodable classifier reply: %v (cleaned %q)", logcolors.LogClassify, err, cleaned)
		return chatResult(originalInput)
	}
	if dec.More() {
		log.Warnf("%s Classifier reply has trailing data after the first object", logcolors.LogClassify)
	}

	switch Intent(wire.Type) {
	case IntentInstagramLink:
		var content InstagramLink
		if err := json.Unmarshal(wire.Content, &content); err != nil || content.Shortcode == "" {
			break
		}
		return Result{Intent: IntentInstagramLink, Instagram: &content}

	case IntentMusicServiceLink:
		var content MusicServiceLink
		if err := json.Unmarshal(wire.Content, &content); err != nil || content.Service == "" || content.TrackID == "" {
			break
		}
		return Result{Intent: IntentMusicServiceLink, MusicLink: &content}

	case IntentSong:
		var content SongQuery
		if err := json.Unmarshal(wire.Content, &content); err != nil || content.Song == "" {
			break
		}
		if content.Duration < 0 {
			content.Duration = 0
		}
		return Result{Intent: IntentSong, Song: &content}

	case IntentChat:
		var text string
		if err := json.Unmarshal(wire.Content, &text); err == nil && text != "" {
			return chatResult(text)
		}
		return chatResult(originalInput)
	}

	log.Errorf("%s Unusable classification %q, falling back to chat", logcolors.LogClassify, wire.Type)
	return chatResult(originalInput)
}
