package embed

import (
	"fmt"
	"sync"

	"github.com/onnwee/streamportal/live"
)

// ChatState is the YouTube chat affordance state.
type ChatState string

const (
	ChatNoVideoID      ChatState = "no_video_id"
	ChatReady          ChatState = "ready"
	ChatPopupRequested ChatState = "popup_requested"
)

// ErrChatUnavailable is returned when a popup is requested before a broadcast id is known.
var ErrChatUnavailable = fmt.Errorf("%w: %s", live.ErrEmbedRestricted, MsgChatNotStarted)

// ChatMachine tracks whether the YouTube chat popup can be offered.
// The popup's own lifecycle is not tracked once requested.
type ChatMachine struct {
	// Observe, when set, is called for every transition.
	Observe func(from, to ChatState)

	mu      sync.Mutex
	state   ChatState
	videoID string
}

// NewChatMachine starts in ChatNoVideoID.
func NewChatMachine() *ChatMachine {
	return &ChatMachine{state: ChatNoVideoID}
}

// State returns the current state.
func (m *ChatMachine) State() ChatState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// VideoID returns the broadcast id the popup would open.
func (m *ChatMachine) VideoID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.videoID
}

// Resolved records a resolution result. An empty id is the same as Lost.
func (m *ChatMachine) Resolved(videoID string) {
	if videoID == "" {
		m.Lost()
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videoID = videoID
	m.setLocked(ChatReady)
}

// Lost records that the broadcast ended or resolution failed.
func (m *ChatMachine) Lost() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videoID = ""
	m.setLocked(ChatNoVideoID)
}

// PlatformSwitched resets to ChatNoVideoID; a fresh resolution is required.
func (m *ChatMachine) PlatformSwitched() { m.Lost() }

// OpenPopup returns the window to open and passes through ChatPopupRequested
// back to ChatReady. Without a broadcast id it returns ErrChatUnavailable.
func (m *ChatMachine) OpenPopup() (PopupSpec, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != ChatReady || m.videoID == "" {
		return PopupSpec{}, ErrChatUnavailable
	}
	m.setLocked(ChatPopupRequested)
	spec := NewPopupSpec(m.videoID)
	m.setLocked(ChatReady)
	return spec, nil
}

func (m *ChatMachine) setLocked(to ChatState) {
	from := m.state
	if from == to {
		return
	}
	m.state = to
	if m.Observe != nil {
		m.Observe(from, to)
	}
}
