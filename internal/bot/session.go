package bot

import (
	"sync"

	"weatherbadge/internal/weather"
)

type stage int

const (
	stageIdle stage = iota
	stageAwaitPlace
	stageChoosing
	stageAwaitCaption
)

// dialog is the per-chat /set conversation.
type dialog struct {
	stage   stage
	results []weather.Place
	page    int
	chosen  weather.Place
}

// sessions tracks dialogs and the messages to delete on the next command,
// both keyed by chat.
type sessions struct {
	mu      sync.Mutex
	dialogs map[int64]*dialog
	trash   map[int64][]int
}

func newSessions() *sessions {
	return &sessions{dialogs: map[int64]*dialog{}, trash: map[int64][]int{}}
}

// dialog returns a copy of the chat's dialog (zero value when idle).
func (s *sessions) dialog(chatID int64) dialog {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.dialogs[chatID]; d != nil {
		return *d
	}
	return dialog{}
}

func (s *sessions) setDialog(chatID int64, d dialog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.stage == stageIdle {
		delete(s.dialogs, chatID)
		return
	}
	s.dialogs[chatID] = &d
}

func (s *sessions) record(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	s.mu.Lock()
	s.trash[chatID] = append(s.trash[chatID], messageID)
	s.mu.Unlock()
}

// reset clears the dialog and returns the recorded message ids.
func (s *sessions) reset(chatID int64) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dialogs, chatID)
	ids := s.trash[chatID]
	delete(s.trash, chatID)
	return ids
}
