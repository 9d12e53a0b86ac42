package session

import (
	"github.com/codelock/codelock-backend/internal/model"
)

// QuestionStatus tracks where a question sits on the student's palette.
type QuestionStatus string

const (
	StatusNotVisited      QuestionStatus = "not-visited"
	StatusNotAnswered     QuestionStatus = "not-answered"
	StatusAnswered        QuestionStatus = "answered"
	StatusMarkedForReview QuestionStatus = "marked-for-review"
)

// State is an immutable snapshot of one exam attempt. Transitions go through
// Apply, which returns a fresh snapshot; callers never mutate a State in place.
type State struct {
	// QuestionIDs is the fixed display order, shuffled once at attempt start.
	QuestionIDs  []string
	CurrentIndex int
	Answers      map[string]string
	Statuses     map[string]QuestionStatus
	Results      map[string]*model.GradingResult
	Executing    map[string]bool
	// TimeLeft is whole seconds remaining; monotonically non-increasing
	// while the attempt runs.
	TimeLeft int
	Started  bool
	Finished bool
}

// NewState builds the initial snapshot for an attempt. Every question starts
// not-visited; answers may be pre-seeded from autosave (reload recovery).
func NewState(questionIDs []string, timeLeftSeconds int, savedAnswers map[string]string) *State {
	s := &State{
		QuestionIDs: append([]string(nil), questionIDs...),
		Answers:     make(map[string]string, len(questionIDs)),
		Statuses:    make(map[string]QuestionStatus, len(questionIDs)),
		Results:     make(map[string]*model.GradingResult),
		Executing:   make(map[string]bool),
		TimeLeft:    timeLeftSeconds,
	}
	for _, id := range questionIDs {
		s.Statuses[id] = StatusNotVisited
	}
	for id, code := range savedAnswers {
		if _, ok := s.Statuses[id]; !ok {
			continue
		}
		if code == "" {
			continue
		}
		s.Answers[id] = code
		s.Statuses[id] = StatusAnswered
	}
	return s
}

// CurrentQuestionID returns the id of the question the student is on.
func (s *State) CurrentQuestionID() string {
	if len(s.QuestionIDs) == 0 {
		return ""
	}
	return s.QuestionIDs[s.CurrentIndex]
}

// clone produces a deep copy so the previous snapshot stays untouched.
func (s *State) clone() *State {
	next := &State{
		QuestionIDs:  s.QuestionIDs,
		CurrentIndex: s.CurrentIndex,
		Answers:      make(map[string]string, len(s.Answers)),
		Statuses:     make(map[string]QuestionStatus, len(s.Statuses)),
		Results:      make(map[string]*model.GradingResult, len(s.Results)),
		Executing:    make(map[string]bool, len(s.Executing)),
		TimeLeft:     s.TimeLeft,
		Started:      s.Started,
		Finished:     s.Finished,
	}
	for k, v := range s.Answers {
		next.Answers[k] = v
	}
	for k, v := range s.Statuses {
		next.Statuses[k] = v
	}
	for k, v := range s.Results {
		next.Results[k] = v
	}
	for k, v := range s.Executing {
		next.Executing[k] = v
	}
	return next
}

// Apply runs one event against the snapshot and returns the next one.
// Once Finished is set the state is frozen: every event except a redundant
// Finish is a no-op returning the same snapshot.
func Apply(s *State, ev Event) *State {
	if s.Finished {
		return s
	}

	switch e := ev.(type) {
	case Start:
		if s.Started {
			return s
		}
		next := s.clone()
		next.Started = true
		visit(next)
		return next

	case Next:
		return navigate(s, s.CurrentIndex+1)

	case Prev:
		return navigate(s, s.CurrentIndex-1)

	case Jump:
		return navigate(s, e.To)

	case CodeChange:
		if _, ok := s.Statuses[e.QuestionID]; !ok {
			return s
		}
		next := s.clone()
		if e.Code == "" {
			delete(next.Answers, e.QuestionID)
		} else {
			next.Answers[e.QuestionID] = e.Code
		}
		if next.Statuses[e.QuestionID] != StatusMarkedForReview {
			if e.Code == "" {
				next.Statuses[e.QuestionID] = StatusNotAnswered
			} else {
				next.Statuses[e.QuestionID] = StatusAnswered
			}
		}
		return next

	case ClearAnswer:
		if _, ok := s.Statuses[e.QuestionID]; !ok {
			return s
		}
		next := s.clone()
		delete(next.Answers, e.QuestionID)
		if next.Statuses[e.QuestionID] != StatusMarkedForReview {
			next.Statuses[e.QuestionID] = StatusNotAnswered
		}
		return next

	case ToggleMark:
		status, ok := s.Statuses[e.QuestionID]
		if !ok {
			return s
		}
		next := s.clone()
		if status == StatusMarkedForReview {
			// Un-marking restores the status implied by answer presence.
			if _, answered := next.Answers[e.QuestionID]; answered {
				next.Statuses[e.QuestionID] = StatusAnswered
			} else {
				next.Statuses[e.QuestionID] = StatusNotAnswered
			}
		} else {
			next.Statuses[e.QuestionID] = StatusMarkedForReview
		}
		return next

	case Tick:
		if !s.Started {
			return s
		}
		next := s.clone()
		next.TimeLeft--
		if next.TimeLeft <= 0 {
			next.TimeLeft = 0
			next.Finished = true
		}
		return next

	case Finish:
		next := s.clone()
		next.TimeLeft = 0
		next.Finished = true
		return next

	case RunStarted:
		if _, ok := s.Statuses[e.QuestionID]; !ok {
			return s
		}
		next := s.clone()
		next.Executing[e.QuestionID] = true
		return next

	case RunFinished:
		if _, ok := s.Statuses[e.QuestionID]; !ok {
			return s
		}
		// Last write wins per question; never touches the question status.
		next := s.clone()
		next.Executing[e.QuestionID] = false
		next.Results[e.QuestionID] = e.Result
		return next
	}

	return s
}

// navigate clamps the target index and performs the first-visit transition on
// the question that becomes current.
func navigate(s *State, to int) *State {
	if len(s.QuestionIDs) == 0 {
		return s
	}
	if to < 0 {
		to = 0
	}
	if to > len(s.QuestionIDs)-1 {
		to = len(s.QuestionIDs) - 1
	}
	next := s.clone()
	next.CurrentIndex = to
	visit(next)
	return next
}

// visit moves the current question out of not-visited.
func visit(s *State) {
	id := s.CurrentQuestionID()
	if id == "" {
		return
	}
	if s.Statuses[id] == StatusNotVisited {
		s.Statuses[id] = StatusNotAnswered
	}
}
