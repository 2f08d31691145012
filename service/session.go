package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sphllzulu/QuickPactv2/model"
	"github.com/sphllzulu/QuickPactv2/pkg/logger"
)

// Session is the in-memory contract state of one user session.
//
// Phase moves input -> review on the first successful generation and back to
// input only through Back. At most one generation is in flight; its result is
// committed only if the session has not been abandoned and its context is
// still live when the provider answers.
type Session struct {
	ID string

	mu           sync.Mutex
	phase        model.Phase
	contractType string
	summary      string
	fields       model.ContractFields
	document     string
	errMsg       string
	generating   bool
	epoch        uint64
	cancel       context.CancelFunc
	closed       bool
	createdAt    time.Time
	updatedAt    time.Time
}

func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		phase:     model.PhaseInput,
		fields:    model.DefaultFields(now),
		createdAt: now,
		updatedAt: now,
	}
}

// Submit validates the form and runs the initial generation. On success the
// fields are enriched by extraction and the session moves to review.
func (s *Session) Submit(ctx context.Context, gen Generator, contractTypeID, summary string) error {
	if strings.TrimSpace(summary) == "" {
		return fmt.Errorf("%w: summary is required", ErrValidation)
	}
	ct, ok := model.FindContractType(contractTypeID)
	if !ok {
		return fmt.Errorf("%w: unknown contract type %q", ErrValidation, contractTypeID)
	}

	s.mu.Lock()
	if err := s.checkStartLocked(model.PhaseInput); err != nil {
		s.mu.Unlock()
		return err
	}
	prompt := BuildInitialPrompt(s.fields, ct, summary)
	genCtx, epoch := s.beginLocked(ctx)
	s.mu.Unlock()

	raw, err := gen.Generate(genCtx, SystemPrompt, prompt)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.finishLocked(genCtx, epoch, raw, err); err != nil {
		return err
	}

	doc := IsolateDocument(raw)
	// User-authored summary wins over values the model wrote into the document
	s.fields = ExtractFields(summary, ExtractFields(doc, s.fields))
	s.contractType = ct.ID
	s.summary = summary
	s.document = doc
	s.phase = model.PhaseReview
	logger.Info(genCtx, "contract submitted", "contract_type", ct.ID, "document_len", len(doc))
	return nil
}

// Regenerate rebuilds the document from the current fields. Fields are not
// re-extracted from the new document.
func (s *Session) Regenerate(ctx context.Context, gen Generator) error {
	s.mu.Lock()
	if err := s.checkStartLocked(model.PhaseReview); err != nil {
		s.mu.Unlock()
		return err
	}
	ct, ok := model.FindContractType(s.contractType)
	if !ok {
		ct = model.ContractType{ID: s.contractType}
	}
	prompt := BuildRegeneratePrompt(s.fields, ct, s.summary)
	genCtx, epoch := s.beginLocked(ctx)
	s.mu.Unlock()

	raw, err := gen.Generate(genCtx, SystemPrompt, prompt)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.finishLocked(genCtx, epoch, raw, err); err != nil {
		return err
	}

	s.document = IsolateDocument(raw)
	logger.Info(genCtx, "contract regenerated", "contract_type", ct.ID, "document_len", len(s.document))
	return nil
}

func (s *Session) checkStartLocked(want model.Phase) error {
	switch {
	case s.closed:
		return ErrSessionClosed
	case s.generating:
		return ErrGenerationInFlight
	case s.phase != want:
		return fmt.Errorf("%w: session is in %s phase", ErrInvalidTransition, s.phase)
	}
	return nil
}

func (s *Session) beginLocked(ctx context.Context) (context.Context, uint64) {
	genCtx, cancel := context.WithCancel(logger.WithSessionID(ctx, s.ID))
	s.epoch++
	s.cancel = cancel
	s.generating = true
	s.touchLocked()
	return genCtx, s.epoch
}

// finishLocked clears the in-flight state and decides whether the result may
// be committed. A nil return means the caller should apply raw.
func (s *Session) finishLocked(genCtx context.Context, epoch uint64, raw string, genErr error) error {
	if epoch != s.epoch || s.closed {
		// Abandon already reset the in-flight state.
		return ErrSessionClosed
	}

	abandoned := genCtx.Err()
	s.cancel()
	s.cancel = nil
	s.generating = false
	s.touchLocked()

	if abandoned != nil {
		return fmt.Errorf("generation abandoned: %w", abandoned)
	}
	if genErr == nil && strings.TrimSpace(raw) == "" {
		genErr = errors.New("AI provider returned an empty document")
	}
	if genErr != nil {
		s.errMsg = UserMessage(genErr)
		return genErr
	}
	s.errMsg = ""
	return nil
}

// UpdateFields overwrites the given fields. Unknown names reject the whole edit.
func (s *Session) UpdateFields(values map[string]string) error {
	probe := model.ContractFields{}
	for name := range values {
		if !probe.Set(name, "") {
			return fmt.Errorf("%w: %s", ErrUnknownField, name)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.phase != model.PhaseReview {
		return fmt.Errorf("%w: fields can only be edited in review", ErrInvalidTransition)
	}
	for name, value := range values {
		s.fields.Set(name, value)
	}
	s.touchLocked()
	return nil
}

// UpdateField overwrites a single field
func (s *Session) UpdateField(name, value string) error {
	return s.UpdateFields(map[string]string{name: value})
}

// Back returns to the input phase, keeping document and fields
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkStartLocked(model.PhaseReview); err != nil {
		return err
	}
	s.phase = model.PhaseInput
	s.touchLocked()
	return nil
}

// DismissError clears the user-visible error message
func (s *Session) DismissError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = ""
	s.touchLocked()
}

// Abandon cancels any in-flight generation and closes the session. A result
// arriving afterwards is dropped.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.epoch++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generating = false
}

// ContractType returns the selected catalogue entry, if any
func (s *Session) ContractType() (model.ContractType, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.FindContractType(s.contractType)
}

// Document returns the latest generated markdown
func (s *Session) Document() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document
}

// LastActive returns the time of the last state change
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// View returns a copy of the session state
func (s *Session) View() model.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.SessionView{
		ID:           s.ID,
		Phase:        s.phase,
		Generating:   s.generating,
		ContractType: s.contractType,
		Summary:      s.summary,
		Fields:       s.fields,
		Document:     s.document,
		ErrorMsg:     s.errMsg,
		CreatedAt:    s.createdAt,
		UpdatedAt:    s.updatedAt,
	}
}

func (s *Session) touchLocked() {
	s.updatedAt = time.Now()
}
