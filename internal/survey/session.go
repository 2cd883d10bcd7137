package survey

import "time"

// Session owns one in-progress survey: its record, current step and submission flags.
// A Session is not safe for concurrent use; give each intake its own.
type Session struct {
	step       int
	data       Record
	submitting bool
	submitErr  string
	succeeded  bool
	returning  bool
	now        func() time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces time.Now for the birth date rule.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSession starts an empty session on the welcome screen.
func NewSession(opts ...Option) *Session {
	s := &Session{data: NewRecord(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Step returns the current screen index.
func (s *Session) Step() int { return s.step }

// Record returns a copy of the collected data.
func (s *Session) Record() Record { return s.data }

// IsSubmitting reports whether a submission is in flight.
func (s *Session) IsSubmitting() bool { return s.submitting }

// SubmitError returns the last submission failure message, or "".
func (s *Session) SubmitError() string { return s.submitErr }

// SubmitSucceeded reports whether the last submission completed.
func (s *Session) SubmitSucceeded() bool { return s.succeeded }

// IsReturningPatient reports whether the record was pre-filled from a stored patient.
func (s *Session) IsReturningPatient() bool { return s.returning }

// Update applies fn to the record.
func (s *Session) Update(fn func(*Record)) {
	fn(&s.data)
}

// CurrentStepValid reports whether the current screen's rule passes.
func (s *Session) CurrentStepValid() bool {
	return ValidateStepAt(s.step, s.data, s.now())
}

// Validate reports whether step's rule passes for the current record.
func (s *Session) Validate(step int) bool {
	return ValidateStepAt(step, s.data, s.now())
}

// Advance moves to the next screen when the current one validates and is not the last.
// It reports whether the step changed.
func (s *Session) Advance() bool {
	if !s.CurrentStepValid() || s.step >= TotalSteps-1 {
		return false
	}
	s.step++
	return true
}

// Retreat moves back one screen unless already on the first.
func (s *Session) Retreat() bool {
	if s.step <= 0 {
		return false
	}
	s.step--
	return true
}

// JumpTo moves directly to step; out-of-range steps are ignored.
func (s *Session) JumpTo(step int) bool {
	if !InRange(step) {
		return false
	}
	s.step = step
	return true
}

// Reset returns to the welcome screen with an empty record and cleared flags.
func (s *Session) Reset() {
	s.step = 0
	s.data = NewRecord()
	s.submitting = false
	s.submitErr = ""
	s.succeeded = false
	s.returning = false
}

// BeginSubmit marks a submission in flight and clears the previous outcome.
// It returns false if one is already running.
func (s *Session) BeginSubmit() bool {
	if s.submitting {
		return false
	}
	s.submitting = true
	s.submitErr = ""
	s.succeeded = false
	return true
}

// FailSubmit records msg and keeps the record so the patient can retry.
func (s *Session) FailSubmit(msg string) {
	s.submitting = false
	s.submitErr = msg
	s.succeeded = false
}

// CompleteSubmit discards the submitted record and flags success.
func (s *Session) CompleteSubmit() {
	s.step = 0
	s.data = NewRecord()
	s.submitting = false
	s.submitErr = ""
	s.succeeded = true
	s.returning = false
}
