package embed

import (
	"errors"
	"testing"

	"github.com/onnwee/streamportal/live"
)

func TestChatMachineTransitions(t *testing.T) {
	var got []ChatState
	m := NewChatMachine()
	m.Observe = func(_, to ChatState) { got = append(got, to) }

	if m.State() != ChatNoVideoID {
		t.Fatalf("initial state = %q", m.State())
	}
	m.Resolved("vid1")
	spec, err := m.OpenPopup()
	if err != nil {
		t.Fatalf("OpenPopup() error = %v", err)
	}
	if spec.URL != "https://www.youtube.com/live_chat?is_popout=1&v=vid1" {
		t.Errorf("popup URL = %q", spec.URL)
	}
	if m.State() != ChatReady {
		t.Errorf("state after popup = %q, want ready", m.State())
	}
	m.Lost()

	want := []ChatState{ChatReady, ChatPopupRequested, ChatReady, ChatNoVideoID}
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestChatMachineOpenPopupWithoutVideo(t *testing.T) {
	m := NewChatMachine()
	_, err := m.OpenPopup()
	if !errors.Is(err, ErrChatUnavailable) || !errors.Is(err, live.ErrEmbedRestricted) {
		t.Fatalf("OpenPopup() error = %v, want ErrChatUnavailable wrapping ErrEmbedRestricted", err)
	}
	if m.State() != ChatNoVideoID {
		t.Errorf("state = %q, want no_video_id", m.State())
	}
}

func TestChatMachinePlatformSwitchForgetsVideo(t *testing.T) {
	m := NewChatMachine()
	m.Resolved("vid1")
	m.PlatformSwitched()
	if m.State() != ChatNoVideoID || m.VideoID() != "" {
		t.Fatalf("after switch: state=%q id=%q", m.State(), m.VideoID())
	}
	if _, err := m.OpenPopup(); err == nil {
		t.Error("OpenPopup() after switch succeeded, want error")
	}
	m.Resolved("")
	if m.State() != ChatNoVideoID {
		t.Errorf("Resolved(\"\") state = %q, want no_video_id", m.State())
	}
}
