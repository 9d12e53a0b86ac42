package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/codelock/codelock-backend/internal/config"
	"github.com/codelock/codelock-backend/internal/grading"
	"github.com/codelock/codelock-backend/internal/middleware"
	"github.com/codelock/codelock-backend/internal/model"
	"github.com/codelock/codelock-backend/internal/proctor"
	"github.com/codelock/codelock-backend/internal/service"
	"github.com/codelock/codelock-backend/internal/session"
	ws "github.com/codelock/codelock-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler owns the live attempt stream: one WebSocket connection per
// student attempt, backed by a single-consumer runtime.
type WSHandler struct {
	cfg               *config.Config
	rdb               *redis.Client
	examService       *service.ExamService
	attemptService    *service.AttemptService
	submissionService *service.SubmissionService
	grader            *grading.Grader
	log               zerolog.Logger
	upgrader          websocket.Upgrader
	streams           *streamRegistry
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	cfg *config.Config,
	rdb *redis.Client,
	examService *service.ExamService,
	attemptService *service.AttemptService,
	submissionService *service.SubmissionService,
	grader *grading.Grader,
	log zerolog.Logger,
) *WSHandler {
	return &WSHandler{
		cfg:               cfg,
		rdb:               rdb,
		examService:       examService,
		attemptService:    attemptService,
		submissionService: submissionService,
		grader:            grader,
		log:               log.With().Str("component", "ws_handler").Logger(),
		upgrader:          buildUpgrader(cfg.AllowedOrigins),
		streams:           newStreamRegistry(),
	}
}

// AttemptStream godoc
// WS /ws/v1/student/exams/:exam_id/stream
// Upgrades to WebSocket and runs the attempt: navigation, autosave, live
// runs, proctoring signals, and final submission all travel this stream.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam ID"})
		return
	}

	studentID := claims.UserID

	attempt, err := h.attemptService.VerifyActiveAttempt(c.Request.Context(), examID, studentID)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "no active attempt for this exam"})
		return
	}

	paper, err := h.examService.GetExamPaper(c.Request.Context(), examID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "exam paper unavailable"})
		return
	}

	recovered, err := h.attemptService.GetAttemptState(c.Request.Context(), examID, studentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load attempt state"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("exam_id", examID.String()).
		Logger()

	h.runAttempt(conn, wsLog, paper, attempt, recovered)
}

// runAttempt wires the runtime, proctor monitor, and sink for one connection
// and pumps client messages until the attempt ends or the socket drops.
func (h *WSHandler) runAttempt(
	conn *websocket.Conn,
	wsLog zerolog.Logger,
	paper *model.ExamPaper,
	attempt *model.ExamAttempt,
	recovered *model.AttemptState,
) {
	examID := attempt.ExamID
	studentID := attempt.StudentID

	order := attempt.QuestionOrder
	if len(order) == 0 {
		order = make([]string, len(paper.Questions))
		for i, q := range paper.Questions {
			order[i] = q.ID.String()
		}
	}

	testCases := make(map[string][]model.TestCase, len(paper.Questions))
	for _, q := range paper.Questions {
		testCases[q.ID.String()] = q.TestCases
	}

	st := session.NewState(order, int(recovered.RemainingTime), recovered.AutosavedAnswers)

	sink := &wsSink{
		conn:      conn,
		rdb:       h.rdb,
		examID:    examID,
		studentID: studentID,
		log:       wsLog,
	}

	counter := proctor.NewRedisCounter(h.rdb, examID.String(), studentID)
	monitor := proctor.NewMonitor(counter, h.cfg.ProctorGrace, h.cfg.ProctorMaxExits, wsLog)

	submit := func(ctx context.Context, st *session.State, auto *session.AutoSubmit) (*model.SubmissionRecord, error) {
		details := service.SubmitDetails{}
		if auto != nil {
			details.AutoSubmitted = true
			details.ExitCount = auto.ExitCount
		} else if count, err := counter.Count(ctx); err == nil {
			details.ExitCount = count
		}
		return h.submissionService.Submit(ctx, paper, studentID, st.Answers, details)
	}

	rt := session.NewRuntime(session.RuntimeConfig{
		Log:             wsLog,
		State:           st,
		Language:        paper.Language,
		TestCases:       testCases,
		DurationSeconds: paper.Duration * 60,
		MinTimeSeconds:  paper.MinTimeMinutes * 60,
		Grader:          h.grader,
		Monitor:         monitor,
		Submit:          submit,
		Sink:            sink,
	})

	monitor.OnExit = func(count int, overLimit bool) {
		sink.ExitWarning(count, h.cfg.ProctorMaxExits, overLimit)
	}
	monitor.OnExpire = rt.ForceSubmit

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Exactly one runtime may drive an attempt. A second tab displaces the
	// first connection, the same way a new login displaces the old session.
	stream := &attemptStream{shutdown: func() {
		cancel()
		_ = conn.Close()
	}}
	key := streamKey(examID, studentID)
	if prev := h.streams.register(key, stream); prev != nil {
		wsLog.Info().Msg("Displacing previous attempt stream")
		prev.close()
	}
	defer h.streams.release(key, stream)

	go rt.Run(runCtx)

	sink.publishMonitorEvent(runCtx, "connected", map[string]any{
		"exit_count": recovered.ExitCount,
	})
	wsLog.Info().Msg("Student connected to attempt stream")

	for {
		var msg ws.Request
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionStart:
			rt.Dispatch(session.Start{})

		case ws.ActionAutosave:
			h.handleAutosave(runCtx, rt, sink, &msg)

		case ws.ActionNext:
			rt.Dispatch(session.Next{})

		case ws.ActionPrev:
			rt.Dispatch(session.Prev{})

		case ws.ActionJump:
			rt.Dispatch(session.Jump{To: msg.Index})

		case ws.ActionMark:
			if !validQuestionID(sink, msg.QID) {
				continue
			}
			rt.Dispatch(session.ToggleMark{QuestionID: msg.QID})

		case ws.ActionClear:
			if !validQuestionID(sink, msg.QID) {
				continue
			}
			rt.Dispatch(session.ClearAnswer{QuestionID: msg.QID})

		case ws.ActionRun:
			if !validQuestionID(sink, msg.QID) {
				continue
			}
			rt.RequestRun(msg.QID)

		case ws.ActionSecurity:
			rt.SecurityUpdate(msg.Fullscreen, msg.Visible)

		case ws.ActionSubmit:
			rt.RequestSubmit()

		case ws.ActionPing:
			sink.write(ws.PongResponse{Event: ws.EventPong})

		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			sink.writeError("unknown action: " + string(msg.Action))
		}

		if sink.finished() {
			return
		}
	}
}

// handleAutosave records the answer in the state machine, caches it for
// reload recovery, and queues the durable write.
func (h *WSHandler) handleAutosave(ctx context.Context, rt *session.Runtime, sink *wsSink, msg *ws.Request) {
	if !validQuestionID(sink, msg.QID) {
		return
	}

	rt.Dispatch(session.CodeChange{QuestionID: msg.QID, Code: msg.Code})

	answersKey := config.CacheKey.AttemptAnswersKey(sink.examID.String(), sink.studentID)
	if msg.Code == "" {
		if err := h.rdb.HDel(ctx, answersKey, msg.QID).Err(); err != nil {
			sink.log.Error().Err(err).Msg("Autosave Redis error")
		}
	} else if err := h.rdb.HSet(ctx, answersKey, msg.QID, msg.Code).Err(); err != nil {
		sink.log.Error().Err(err).Msg("Autosave Redis error")
		sink.writeError("save failed")
		return
	}

	payload, _ := json.Marshal(map[string]any{
		"student_id": sink.studentID,
		"exam_id":    sink.examID.String(),
		"q_id":       msg.QID,
		"answer":     msg.Code,
	})
	h.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload)

	sink.write(ws.SuccessResponse{Event: ws.EventSuccess, Action: ws.ActionAutosave})
}

// validQuestionID rejects malformed ids before they reach Redis keys.
func validQuestionID(sink *wsSink, qid string) bool {
	if qid == "" {
		sink.writeError("q_id is required")
		return false
	}
	if _, err := uuid.Parse(qid); err != nil {
		sink.writeError("invalid q_id format")
		return false
	}
	return true
}

// stateView is the client-facing projection of a session snapshot. Answers
// stay server-side; the client already has what it typed.
type stateView struct {
	CurrentIndex int                               `json:"current_index"`
	Statuses     map[string]session.QuestionStatus `json:"statuses"`
	TimeLeft     int                               `json:"time_left"`
	Started      bool                              `json:"started"`
	Finished     bool                              `json:"finished"`
}

// wsSink fans runtime outputs to the WebSocket, the Redis recovery keys, and
// the faculty monitor channel. The write mutex serializes the runtime
// goroutine, the monitor timer goroutine, and the reader loop.
type wsSink struct {
	conn      *websocket.Conn
	rdb       *redis.Client
	examID    uuid.UUID
	studentID int
	log       zerolog.Logger

	mu   sync.Mutex
	done bool
}

func (s *wsSink) write(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ws.WriteTyped(s.conn, v); err != nil {
		s.log.Debug().Err(err).Msg("WebSocket write failed")
	}
}

func (s *wsSink) writeError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = ws.WriteError(s.conn, msg)
}

func (s *wsSink) finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// StateChanged mirrors the fresh snapshot to the client and syncs the status
// palette to Redis for reload recovery.
func (s *wsSink) StateChanged(st *session.State) {
	statuses := make(map[string]any, len(st.Statuses))
	for id, status := range st.Statuses {
		statuses[id] = string(status)
	}
	key := config.CacheKey.AttemptStatusesKey(s.examID.String(), s.studentID)
	if err := s.rdb.HSet(context.Background(), key, statuses).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to sync statuses to Redis")
	}

	view := stateView{
		CurrentIndex: st.CurrentIndex,
		Statuses:     st.Statuses,
		TimeLeft:     st.TimeLeft,
		Started:      st.Started,
		Finished:     st.Finished,
	}
	s.write(ws.StateResponse{Event: ws.EventState, State: view})
}

func (s *wsSink) RunResult(questionID string, result *model.GradingResult) {
	s.write(ws.RunResultResponse{
		Event:  ws.EventRunResult,
		QID:    questionID,
		Result: result,
	})
}

func (s *wsSink) ExitWarning(count, maxExits int, overLimit bool) {
	message := "You left secure mode. Return to fullscreen or the exam will be submitted."
	if overLimit {
		message = "Exit limit exceeded. This attempt is flagged for review."
	}
	s.write(ws.WarningResponse{
		Event:     ws.EventWarning,
		Message:   message,
		ExitCount: count,
		OverLimit: overLimit,
	})

	ctx := context.Background()
	violation, _ := json.Marshal(map[string]any{
		"student_id": s.studentID,
		"exam_id":    s.examID.String(),
		"kind":       "secure_mode_exit",
		"exit_count": count,
		"at":         time.Now().UTC().Format(time.RFC3339),
	})
	s.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, violation)

	s.publishMonitorEvent(ctx, "secure_mode_exit", map[string]any{
		"exit_count": count,
		"over_limit": overLimit,
	})
}

func (s *wsSink) Rejected(reason string) {
	s.writeError(reason)
}

func (s *wsSink) Submitted(rec *model.SubmissionRecord, auto bool) {
	s.mu.Lock()
	s.done = true
	_ = ws.WriteTyped(s.conn, ws.GradedResponse{
		Event:         ws.EventGraded,
		Score:         rec.Score,
		AutoSubmitted: auto,
	})
	s.mu.Unlock()

	s.publishMonitorEvent(context.Background(), "submitted", map[string]any{
		"score":          rec.Score,
		"status":         rec.Status,
		"auto_submitted": auto,
	})
}

func (s *wsSink) SubmitFailed(err error) {
	s.writeError("submission failed, please try again")
}

// publishMonitorEvent pushes a live event onto the exam's monitor channel
// for the faculty dashboard. Best-effort.
func (s *wsSink) publishMonitorEvent(ctx context.Context, kind string, extra map[string]any) {
	event := map[string]any{
		"type":       kind,
		"student_id": s.studentID,
		"at":         time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range extra {
		event[k] = v
	}
	payload, _ := json.Marshal(event)
	if err := s.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(s.examID.String()), payload).Err(); err != nil {
		s.log.Debug().Err(err).Msg("Monitor publish failed")
	}
}
