package session

import (
	"fmt"
	"time"

	"mediabot/internal/jobspec"
)

// State is a chat's position in the conversation flow.
type State string

const (
	StateIdle              State = "idle"
	StateChoosingMedia     State = "choosing_media"
	StateAwaitingUpload    State = "awaiting_upload"
	StateChoosingOperation State = "choosing_operation"
	StateCollectingInputs  State = "collecting_inputs"
	StateAwaitingParams    State = "awaiting_params"
)

// transitions lists the states reachable from each state. Every state can
// additionally reset to idle (cancel), which is always legal.
var transitions = map[State][]State{
	StateIdle:              {StateChoosingMedia},
	StateChoosingMedia:     {StateAwaitingUpload},
	StateAwaitingUpload:    {StateChoosingOperation},
	StateChoosingOperation: {StateCollectingInputs, StateAwaitingParams},
	StateCollectingInputs:  {StateCollectingInputs, StateAwaitingParams},
	StateAwaitingParams:    {},
}

// Session is one chat's conversation state.
type Session struct {
	ChatID    int64
	UserID    int64
	State     State
	MediaKind jobspec.MediaKind
	Operation jobspec.Operation

	// InputPaths are the uploads collected so far, in upload order.
	InputPaths []string

	// PromptMessageID is the bot message carrying the active inline
	// keyboard, edited in place as the flow advances.
	PromptMessageID int

	UpdatedAt time.Time
}

// New returns a fresh idle session for the chat.
func New(chatID int64) *Session {
	return &Session{ChatID: chatID, State: StateIdle}
}

// Transition moves the session to the next state, validating the edge.
func (s *Session) Transition(to State) error {
	if to == StateIdle {
		s.reset()
		return nil
	}
	for _, allowed := range transitions[s.State] {
		if allowed == to {
			s.State = to
			return nil
		}
	}
	return fmt.Errorf("invalid session transition %s -> %s", s.State, to)
}

// Reset returns the session to idle and forgets collected uploads.
func (s *Session) Reset() {
	s.reset()
}

func (s *Session) reset() {
	s.State = StateIdle
	s.MediaKind = ""
	s.Operation = ""
	s.InputPaths = nil
	s.PromptMessageID = 0
}

// AddInput appends an uploaded file to the session.
func (s *Session) AddInput(path string) {
	s.InputPaths = append(s.InputPaths, path)
}
