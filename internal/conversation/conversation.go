package conversation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smart-ai-memory/empathy-refine/internal/llm"
	"github.com/smart-ai-memory/empathy-refine/internal/logging"
)

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// Role tags a transcript message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// State is a session's position in the turn loop.
type State string

const (
	StateAwaitingInput State = "awaiting-input"
	StateGenerating    State = "generating-response"
	StateComplete      State = "complete"
	StateCancelled     State = "cancelled"
)

// Turn is what one exchange hands back to the caller.
type Turn struct {
	Reply    string  `json:"reply"`
	Complete bool    `json:"complete"`
	Result   *Result `json:"result,omitempty"`
}

// Session errors.
var (
	ErrSessionNotFound = errors.New("conversation: session not found")
	ErrSessionEnded    = errors.New("conversation: session already ended")
	ErrEmptyInput      = errors.New("conversation: empty input")
)

// maxTurnsClosing ends a session that hit its turn bound without a
// completion marker from the model.
const maxTurnsClosing = "Thanks — that's everything I can ask within this session. " +
	"I'll proceed with what you've told me so far. Good luck!"

// Session is one refinement dialogue. All turn processing happens
// under its lock, so turns from concurrent callers cannot interleave
// into the transcript.
type Session struct {
	ID       string
	Key      string
	FormType FormType

	mu        sync.Mutex
	form      FormConfig
	messages  []Message
	turnCount int
	state     State
	result    *Result

	cancelMu  sync.Mutex
	genCancel context.CancelFunc
}

// InitialQuestion returns the question that opened the dialogue.
func (s *Session) InitialQuestion() string {
	return s.form.InitialQuestion
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TurnCount returns how many user turns the session has consumed.
func (s *Session) TurnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnCount
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Result returns the extracted result of a completed session.
func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// UserAnswers returns the user's messages in order. The engine pairs
// them with the workflow's question topics when learning a pattern.
func (s *Session) UserAnswers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var answers []string
	for _, m := range s.messages {
		if m.Role == RoleUser {
			answers = append(answers, m.Content)
		}
	}
	return answers
}

func (s *Session) ended() bool {
	return s.state == StateComplete || s.state == StateCancelled
}

// Config holds the manager's tunables.
type Config struct {
	// Forms overrides the shipped form catalog when non-nil.
	Forms map[FormType]FormConfig
	// MaxTokens and Temperature shape generation calls.
	MaxTokens   int
	Temperature float64
	// Timeout bounds each generation call; zero means the llm default.
	Timeout time.Duration
}

// DefaultConfig returns the shipped conversation configuration.
func DefaultConfig() Config {
	return Config{MaxTokens: 1024, Temperature: 0.3}
}

// Manager owns the active sessions. At most one session is active per
// session key; starting a second one supersedes (cancels) the first.
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	forms    map[FormType]FormConfig
	gen      llm.Generator
	sessions map[string]*Session
	active   map[string]*Session // by session key
	logger   *slog.Logger
}

// NewManager creates a session manager over the given generator.
func NewManager(cfg Config, gen llm.Generator) *Manager {
	forms := cfg.Forms
	if forms == nil {
		forms = defaultForms()
	}
	return &Manager{
		cfg:      cfg,
		forms:    forms,
		gen:      gen,
		sessions: make(map[string]*Session),
		active:   make(map[string]*Session),
		logger:   logging.NewModuleLogger("conversation"),
	}
}

// Start opens a session for the given form and session key, seeding
// the transcript with the form's system block and initial question.
// An active session under the same key is superseded: it is cancelled
// and its transcript discarded.
func (m *Manager) Start(formType FormType, key string) (*Session, error) {
	form, ok := m.forms[formType]
	if !ok {
		form = m.forms[FormGeneric]
	}
	if form.MaxTurns <= 0 {
		form.MaxTurns = DefaultMaxTurns
	}

	m.mu.Lock()
	if prior, ok := m.active[key]; ok && !priorEnded(prior) {
		m.logger.Info("superseding active session", "key", key, "prior", prior.ID)
		m.mu.Unlock()
		_ = m.Cancel(prior.ID)
		m.mu.Lock()
	}

	now := timeNow().UTC()
	s := &Session{
		ID:       uuid.NewString(),
		Key:      key,
		FormType: formType,
		form:     form,
		state:    StateAwaitingInput,
		messages: []Message{
			{Role: RoleSystem, Content: systemPrompt(form), Timestamp: now},
			{Role: RoleAssistant, Content: form.InitialQuestion, Timestamp: now},
		},
	}
	m.sessions[s.ID] = s
	m.active[key] = s
	m.mu.Unlock()

	return s, nil
}

func priorEnded(s *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended()
}

// Get returns a session by id.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// SendTurn processes one user turn: append the input, then either
// force the closing message (turn bound reached) or ask the generator
// for the next reply, falling back deterministically on any failure.
func (m *Manager) SendTurn(ctx context.Context, sessionID, text string) (*Turn, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	s, ok := m.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended() {
		return nil, ErrSessionEnded
	}

	s.messages = append(s.messages, Message{Role: RoleUser, Content: text, Timestamp: timeNow().UTC()})
	s.turnCount++

	if s.turnCount >= s.form.MaxTurns {
		s.appendAssistant(maxTurnsClosing)
		s.state = StateComplete
		s.result = extractResult(maxTurnsClosing)
		return &Turn{Reply: maxTurnsClosing, Complete: true, Result: s.result}, nil
	}

	s.state = StateGenerating
	reply, cancelled := m.generate(ctx, s, text)
	if cancelled {
		s.state = StateCancelled
		return nil, ErrSessionEnded
	}

	s.appendAssistant(reply)
	if isComplete(reply) {
		s.state = StateComplete
		s.result = extractResult(reply)
		return &Turn{Reply: reply, Complete: true, Result: s.result}, nil
	}

	s.state = StateAwaitingInput
	return &Turn{Reply: reply, Complete: false}, nil
}

// generate asks the collaborator for the next reply, substituting the
// deterministic fallback on failure. The second return reports that
// the session was cancelled mid-call. Called with s.mu held.
func (m *Manager) generate(ctx context.Context, s *Session, latestUserText string) (string, bool) {
	// No generator configured means the session runs entirely on the
	// deterministic replies.
	if m.gen == nil {
		return fallbackFor(latestUserText), false
	}

	genCtx, cancel := context.WithCancel(ctx)
	s.cancelMu.Lock()
	s.genCancel = cancel
	s.cancelMu.Unlock()
	defer func() {
		cancel()
		s.cancelMu.Lock()
		s.genCancel = nil
		s.cancelMu.Unlock()
	}()

	// The system block travels in Options, not the transcript.
	msgs := make([]llm.Message, 0, len(s.messages))
	for _, msg := range s.messages {
		if msg.Role == RoleSystem {
			continue
		}
		msgs = append(msgs, llm.Message{Role: string(msg.Role), Content: msg.Content})
	}

	reply, err := m.gen.Generate(genCtx, msgs, llm.Options{
		MaxTokens:    m.cfg.MaxTokens,
		Temperature:  m.cfg.Temperature,
		SystemPrompt: systemPrompt(s.form),
		Timeout:      m.cfg.Timeout,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(genCtx.Err(), context.Canceled) {
			return "", true
		}
		m.logger.Warn("generation failed, using fallback reply",
			"session", s.ID, "error", err)
		return fallbackFor(latestUserText), false
	}
	return reply.Content, false
}

func (s *Session) appendAssistant(content string) {
	s.messages = append(s.messages, Message{Role: RoleAssistant, Content: content, Timestamp: timeNow().UTC()})
}

// EndAndSummarize forces completion detection on the existing
// transcript without another generation call. The result comes from
// the last assistant reply.
func (m *Manager) EndAndSummarize(sessionID string) (*Turn, error) {
	s, ok := m.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended() {
		return nil, ErrSessionEnded
	}

	var lastAssistant string
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == RoleAssistant {
			lastAssistant = s.messages[i].Content
			break
		}
	}

	s.state = StateComplete
	s.result = extractResult(lastAssistant)
	return &Turn{Reply: lastAssistant, Complete: true, Result: s.result}, nil
}

// Cancel aborts a session. Cancellation is a first-class outcome, not
// an error: the transcript is discarded, any in-flight generation is
// released, and nothing is learned from the session.
func (m *Manager) Cancel(sessionID string) error {
	s, ok := m.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}

	// Release an in-flight generation before taking the session lock;
	// SendTurn holds the lock for the duration of the call.
	s.cancelMu.Lock()
	if s.genCancel != nil {
		s.genCancel()
	}
	s.cancelMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateComplete {
		return ErrSessionEnded
	}
	s.state = StateCancelled
	s.result = nil
	return nil
}

// Remove drops an ended session from the manager.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		delete(m.sessions, sessionID)
		if m.active[s.Key] == s {
			delete(m.active, s.Key)
		}
	}
}
