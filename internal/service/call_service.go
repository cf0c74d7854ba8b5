package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/duochat/duochat-backend/internal/matchmaking"
	"github.com/duochat/duochat-backend/internal/models"
	"github.com/duochat/duochat-backend/pkg/rtctoken"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// HistoryLimit caps the calls returned by History.
	HistoryLimit = 100

	callSource = "matchmaking"

	EventMatchReady = "match_ready"
	EventCallEnded  = "call_ended"
)

// CallServiceConfig tunes the call service.
type CallServiceConfig struct {
	QueueTTL        time.Duration
	SweepInterval   time.Duration
	TokenTTL        time.Duration
	RequireVerified bool
}

// JoinResult is the outcome of a join request. Exactly one of Waiting and
// Match is set.
type JoinResult struct {
	Waiting bool
	// ActiveRoomID is set when the participant is already in a call.
	ActiveRoomID string
	Match        *matchmaking.MatchResult
}

type EndCallRequest struct {
	RoomID      string
	CallID      string
	RequesterID string
	ForceEnd    bool
}

type EndCallResult struct {
	CallID          string
	RoomID          string
	DurationSeconds int
	ForceEnd        bool
	Message         string
}

type TokenResult struct {
	Token       string
	ChannelName string
	AppID       string
	ExpiresAt   time.Time
}

// CallService pairs waiting participants and drives the lifecycle of the
// resulting calls.
type CallService struct {
	ledger   Ledger
	users    UserStore
	issuer   CredentialIssuer
	mailbox  matchmaking.Mailbox
	notifier Notifier
	logger   *zap.Logger
	cfg      CallServiceConfig

	queue    *matchmaking.Queue
	sessions *matchmaking.Sessions
	now      func() time.Time

	// mu serialises the mailbox-miss, busy check, enqueue, pair and reserve
	// steps of Join. It is never held across issuer or ledger calls.
	mu sync.Mutex

	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
	runMu    sync.Mutex
}

func NewCallService(
	ledger Ledger,
	users UserStore,
	issuer CredentialIssuer,
	mailbox matchmaking.Mailbox,
	notifier Notifier,
	cfg CallServiceConfig,
	logger *zap.Logger,
) *CallService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CallService{
		ledger:   ledger,
		users:    users,
		issuer:   issuer,
		mailbox:  mailbox,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		queue:    matchmaking.NewQueue(cfg.QueueTTL),
		sessions: matchmaking.NewSessions(),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Join returns a parked match if one exists, otherwise queues the participant
// and tries to pair them.
func (s *CallService) Join(ctx context.Context, p matchmaking.Participant) (*JoinResult, error) {
	if p.ID == "" {
		return nil, ErrUnauthorized
	}

	parked, ok, err := s.mailbox.Take(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDependency, err)
	}
	if ok {
		s.logger.Info("Delivered parked match",
			zap.String("participantId", p.ID),
			zap.String("roomId", parked.RoomID))
		return &JoinResult{Match: &parked}, nil
	}

	if err := s.checkEligible(p); err != nil {
		return nil, err
	}

	now := s.now()

	s.mu.Lock()
	if s.sessions.Busy(p.ID) {
		s.mu.Unlock()
		result := &JoinResult{Waiting: true}
		if session, ok := s.sessions.ForParticipant(p.ID); ok {
			result.ActiveRoomID = session.RoomID
		}
		return result, nil
	}

	s.queue.Enqueue(matchmaking.Entry{Participant: p, JoinedAt: now})
	pair, found := matchmaking.FindMatch(p, s.queue, now)
	if !found {
		s.mu.Unlock()
		return &JoinResult{Waiting: true}, nil
	}

	initiatorID, receiverID := pair.Initiator.Participant.ID, pair.Receiver.Participant.ID
	if err := s.sessions.Reserve(initiatorID, receiverID); err != nil {
		// queued participants are never busy, keep both waiting if that ever breaks
		s.queue.Restore(pair.Receiver)
		s.queue.Restore(pair.Initiator)
		s.mu.Unlock()
		s.logger.Error("Paired a busy participant",
			zap.String("initiatorId", initiatorID),
			zap.String("receiverId", receiverID),
			zap.Error(err))
		return &JoinResult{Waiting: true}, nil
	}
	s.mu.Unlock()

	return s.formMatch(ctx, pair, now)
}

func (s *CallService) checkEligible(p matchmaking.Participant) error {
	if p.Role != models.RoleMale && p.Role != models.RoleFemale {
		return ErrInvalidRole
	}
	if s.cfg.RequireVerified && !p.Verified {
		return ErrVerificationRequired
	}
	if p.Preference.IsFilter() && !p.Premium {
		return ErrPremiumRequired
	}
	return nil
}

// formMatch turns a reserved pair into an active call. On failure every step
// already taken is undone and both participants go back to the queue.
func (s *CallService) formMatch(ctx context.Context, pair matchmaking.Pair, now time.Time) (*JoinResult, error) {
	initiator, receiver := pair.Initiator.Participant, pair.Receiver.Participant
	roomID := fmt.Sprintf("call_%s_%s_%d", initiator.ID, receiver.ID, now.UnixNano())
	channel := fmt.Sprintf("ch_%d_%s", now.UnixMilli(), uuid.NewString()[:8])

	log := s.logger.With(
		zap.String("roomId", roomID),
		zap.String("initiatorId", initiator.ID),
		zap.String("receiverId", receiver.ID))

	abort := func(step string, err error) (*JoinResult, error) {
		s.sessions.Release(initiator.ID, receiver.ID)
		s.queue.Restore(pair.Receiver)
		s.queue.Restore(pair.Initiator)
		log.Error("Match formation failed", zap.String("step", step), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", ErrDependency, step, err)
	}

	initiatorToken, err := s.issuer.IssueToken(ctx, grantFor(roomID, channel, initiator.ID), s.cfg.TokenTTL)
	if err != nil {
		return abort("issue initiator token", err)
	}
	receiverToken, err := s.issuer.IssueToken(ctx, grantFor(roomID, channel, receiver.ID), s.cfg.TokenTTL)
	if err != nil {
		return abort("issue receiver token", err)
	}

	call, err := s.ledger.CreateCall(ctx, models.CreateCallParams{
		CallerID:  initiator.ID,
		CalleeID:  receiver.ID,
		StartedAt: now,
		Status:    models.CallStatusActive,
		Metadata: models.CallMetadata{
			RoomID:      roomID,
			ChannelName: channel,
			Source:      callSource,
		},
	})
	if err != nil {
		return abort("create call record", err)
	}

	session := matchmaking.Session{
		CallID:      call.ID,
		RoomID:      roomID,
		ChannelName: channel,
		InitiatorID: initiator.ID,
		ReceiverID:  receiver.ID,
		StartedAt:   now,
	}
	cancelCall := func() {
		if cerr := s.ledger.MarkCancelled(context.WithoutCancel(ctx), call.ID); cerr != nil {
			log.Error("Failed to cancel orphaned call record",
				zap.String("callId", call.ID), zap.Error(cerr))
		}
	}

	if err := s.sessions.Register(session); err != nil {
		cancelCall()
		return abort("register session", err)
	}

	initiatorResult := matchmaking.MatchResult{
		Matched:     true,
		RoomID:      roomID,
		CallID:      call.ID,
		ChannelName: channel,
		Token:       initiatorToken,
		Account:     initiator.ID,
		Role:        matchmaking.CallRoleCaller,
		Other:       receiver.Profile,
	}
	receiverResult := matchmaking.MatchResult{
		Matched:     true,
		RoomID:      roomID,
		CallID:      call.ID,
		ChannelName: channel,
		Token:       receiverToken,
		Account:     receiver.ID,
		Role:        matchmaking.CallRoleCallee,
		Other:       initiator.Profile,
	}

	// the mailbox is the only path carrying the receiver's credentials
	if err := s.mailbox.Put(context.WithoutCancel(ctx), receiver.ID, receiverResult); err != nil {
		s.sessions.Remove(roomID)
		cancelCall()
		return abort("park receiver result", err)
	}
	s.notifier.SendToUser(receiver.ID, EventMatchReady, map[string]string{
		"roomId": roomID,
		"callId": call.ID,
	})

	log.Info("Match formed", zap.String("callId", call.ID))
	return &JoinResult{Match: &initiatorResult}, nil
}

func grantFor(roomID, channel, account string) rtctoken.Grant {
	return rtctoken.Grant{
		RoomID:  roomID,
		Channel: channel,
		Account: account,
		Role:    rtctoken.RolePublisher,
	}
}

// Leave drops the participant's queue entry. A parked match is left alone.
func (s *CallService) Leave(_ context.Context, participantID string) bool {
	removed := s.queue.Remove(participantID)
	if removed {
		s.logger.Debug("Participant left queue", zap.String("participantId", participantID))
	}
	return removed
}

// EndCall finalises a call. The active session is looked up by room id first;
// when it is gone the ledger record named by CallID is used instead.
func (s *CallService) EndCall(ctx context.Context, req EndCallRequest) (*EndCallResult, error) {
	if req.RoomID == "" && req.CallID == "" {
		return nil, fmt.Errorf("%w: roomId is required", ErrInvalidInput)
	}

	now := s.now()
	roomID := req.RoomID
	var (
		callID    string
		startedAt time.Time
		partnerID string
		session   matchmaking.Session
		claimed   bool
		stale     []string
	)

	if live, ok := s.sessions.Get(req.RoomID); ok {
		if !live.Has(req.RequesterID) {
			return nil, ErrForbidden
		}
		session, claimed = s.sessions.Claim(req.RoomID)
	}

	if claimed {
		// held until the mailbox is cleared so no new match is parked meanwhile
		defer s.sessions.Release(session.InitiatorID, session.ReceiverID)
		callID = session.CallID
		startedAt = session.StartedAt
		partnerID = session.Other(req.RequesterID)
		stale = []string{session.InitiatorID, session.ReceiverID, session.RoomID}
	} else {
		if req.CallID == "" {
			return nil, ErrCallNotFound
		}
		call, err := s.ledger.FindCallByID(ctx, req.CallID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDependency, err)
		}
		if call == nil || call.Status.IsTerminal() {
			return nil, ErrCallNotFound
		}
		if !call.HasParticipant(req.RequesterID) {
			return nil, ErrForbidden
		}

		callID = call.ID
		startedAt = call.StartedAt
		partnerID = call.OtherParty(req.RequesterID)
		if roomID == "" {
			roomID = call.Metadata.RoomID
		}
		if orphan, ok := s.sessions.RemoveByCallID(call.ID); ok {
			session, claimed = orphan, true
			roomID = orphan.RoomID
		}
		if roomID != "" {
			stale = []string{roomID}
		}
	}

	duration := int(now.Sub(startedAt) / time.Second)
	if duration < 0 {
		duration = 0
	}

	finished, err := s.ledger.FinishCall(ctx, callID, now, duration)
	if err != nil {
		if claimed {
			// put the session back so the end can be retried by room id
			if rerr := s.sessions.Register(session); rerr != nil {
				s.logger.Warn("Could not restore session", zap.String("roomId", session.RoomID), zap.Error(rerr))
			}
		}
		return nil, fmt.Errorf("%w: %w", ErrDependency, err)
	}

	// the record is terminal now, by this request or a concurrent one
	if len(stale) > 0 {
		if err := s.mailbox.Discard(ctx, stale...); err != nil {
			s.logger.Warn("Failed to clear mailbox", zap.String("roomId", roomID), zap.Error(err))
		}
	}
	if finished == nil {
		return nil, ErrCallNotFound
	}

	for _, id := range []string{finished.CallerID, finished.CalleeID} {
		if err := s.users.IncrementVideoSeconds(ctx, id, duration); err != nil {
			s.logger.Warn("Failed to update video usage",
				zap.String("userId", id),
				zap.Int("seconds", duration),
				zap.Error(err))
		}
	}

	result := &EndCallResult{
		CallID:          callID,
		RoomID:          roomID,
		DurationSeconds: duration,
		ForceEnd:        req.ForceEnd,
		Message:         "Call ended for caller",
	}
	if req.ForceEnd {
		result.Message = "Call ended for both users"
		s.notifier.SendToUser(partnerID, EventCallEnded, map[string]interface{}{
			"roomId":   roomID,
			"callId":   callID,
			"duration": duration,
		})
	}

	s.logger.Info("Call ended",
		zap.String("callId", callID),
		zap.String("roomId", roomID),
		zap.String("endedBy", req.RequesterID),
		zap.Int("durationSeconds", duration),
		zap.Bool("forceEnd", req.ForceEnd))

	return result, nil
}

// Status reports whether a call is over. Unknown calls count as ended.
func (s *CallService) Status(ctx context.Context, callID string) (bool, error) {
	if callID == "" {
		return false, fmt.Errorf("%w: callId is required", ErrInvalidInput)
	}

	call, err := s.ledger.FindCallByID(ctx, callID)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrDependency, err)
	}
	if call == nil {
		return true, nil
	}
	return call.Status.IsTerminal(), nil
}

// RefreshToken mints a fresh credential for a participant of an active call.
func (s *CallService) RefreshToken(ctx context.Context, roomID, participantID string) (*TokenResult, error) {
	if roomID == "" {
		return nil, fmt.Errorf("%w: roomId is required", ErrInvalidInput)
	}

	session, ok := s.sessions.Get(roomID)
	if !ok {
		return nil, ErrCallNotFound
	}
	if !session.Has(participantID) {
		return nil, ErrForbidden
	}

	issuedAt := s.now()
	token, err := s.issuer.IssueToken(ctx, grantFor(roomID, session.ChannelName, participantID), s.cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDependency, err)
	}

	return &TokenResult{
		Token:       token,
		ChannelName: session.ChannelName,
		AppID:       s.issuer.AppID(),
		ExpiresAt:   issuedAt.Add(s.cfg.TokenTTL),
	}, nil
}

// History returns the user's most recent calls with the partner's profile.
func (s *CallService) History(ctx context.Context, userID string) ([]models.CallHistoryEntry, error) {
	calls, err := s.ledger.ListCallsForUser(ctx, userID, HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDependency, err)
	}

	others := make([]string, 0, len(calls))
	for _, c := range calls {
		others = append(others, c.OtherParty(userID))
	}

	summaries, err := s.users.FindSummaries(ctx, others)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDependency, err)
	}

	entries := make([]models.CallHistoryEntry, 0, len(calls))
	for _, c := range calls {
		other := c.OtherParty(userID)
		summary, ok := summaries[other]
		if !ok {
			summary = models.UserSummary{ID: other}
		}
		entries = append(entries, models.CallHistoryEntry{Call: *c, OtherUser: summary})
	}
	return entries, nil
}

// QueueLen is the number of participants currently waiting.
func (s *CallService) QueueLen() int {
	return s.queue.Len()
}

// ActiveCalls is the number of calls in progress.
func (s *CallService) ActiveCalls() int {
	return s.sessions.Len()
}

// Start 만료된 대기열 항목 정리 루프 시작
func (s *CallService) Start() {
	if s.cfg.SweepInterval <= 0 {
		return
	}

	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		return
	}
	s.running = true
	s.runMu.Unlock()

	s.logger.Info("Starting queue sweeper", zap.Duration("interval", s.cfg.SweepInterval))

	s.wg.Add(1)
	go s.sweepLoop()
}

// Stop 정리 루프 중지
func (s *CallService) Stop() {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return
	}
	s.running = false
	s.runMu.Unlock()

	close(s.stopChan)
	s.wg.Wait()
	s.logger.Info("Queue sweeper stopped")
}

func (s *CallService) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.queue.Sweep(s.now()); n > 0 {
				s.logger.Debug("Evicted expired queue entries", zap.Int("count", n))
			}
		case <-s.stopChan:
			return
		}
	}
}
