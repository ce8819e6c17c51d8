package bot

import (
	"fmt"
	"strconv"
	"strings"

	"music-bot-go/delivery"
	"music-bot-go/session"
)

// Callback data layout: "<action>:<session id>[:<absolute track index>]".
const (
	actionSelect = "select"
	actionNext   = "next"
	actionPrev   = "prev"
	actionCancel = "cancel"
)

func selectData(sessionID string, index int) string {
	return fmt.Sprintf("%s:%s:%d", actionSelect, sessionID, index)
}

func navData(action, sessionID string) string {
	return action + ":" + sessionID
}

// parseCallback splits callback data into its parts. index is -1 for
// actions that carry none.
func parseCallback(data string) (action, sessionID string, index int, err error) {
	parts := strings.Split(data, ":")
	switch {
	case len(parts) == 3 && parts[0] == actionSelect:
		index, err = strconv.Atoi(parts[2])
		if err != nil {
			return "", "", 0, fmt.Errorf("bad track index in %q", data)
		}
		return parts[0], parts[1], index, nil
	case len(parts) == 2:
		return parts[0], parts[1], -1, nil
	}
	return "", "", 0, fmt.Errorf("unrecognized callback data %q", data)
}

func pageText(s *session.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Select a track (page %d/%d):\n", s.Page+1, s.TotalPages())
	offset := s.PageOffset()
	for i, track := range s.PageTracks() {
		fmt.Fprintf(&b, "%d. %s - %s (%s)\n", offset+i+1, track.Artist, track.Title, formatDuration(track.Duration))
	}
	return b.String()
}

func pageKeyboard(s *session.Session) delivery.Keyboard {
	var kb delivery.Keyboard
	offset := s.PageOffset()
	for i, track := range s.PageTracks() {
		label := fmt.Sprintf("%d. %s - %s", offset+i+1, track.Artist, track.Title)
		kb = append(kb, []delivery.Button{{Label: label, Data: selectData(s.ID, offset+i)}})
	}

	var nav []delivery.Button
	if s.HasPrev() {
		nav = append(nav, delivery.Button{Label: "« Prev", Data: navData(actionPrev, s.ID)})
	}
	nav = append(nav, delivery.Button{Label: "Cancel", Data: navData(actionCancel, s.ID)})
	if s.HasNext() {
		nav = append(nav, delivery.Button{Label: "Next »", Data: navData(actionNext, s.ID)})
	}
	return append(kb, nav)
}

func formatDuration(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
