package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/duochat/duochat-backend/internal/matchmaking"
	"github.com/duochat/duochat-backend/internal/models"
	"github.com/duochat/duochat-backend/pkg/rtctoken"
	"go.uber.org/zap"
)

var errBackend = errors.New("backend down")

type fakeLedger struct {
	mu        sync.Mutex
	calls     map[string]*models.Call
	seq       int
	createErr error
	finishErr error
	finishes  int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{calls: make(map[string]*models.Call)}
}

func (l *fakeLedger) CreateCall(_ context.Context, p models.CreateCallParams) (*models.Call, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.createErr != nil {
		return nil, l.createErr
	}
	l.seq++
	c := &models.Call{
		ID:        fmt.Sprintf("call-%d", l.seq),
		CallerID:  p.CallerID,
		CalleeID:  p.CalleeID,
		StartedAt: p.StartedAt,
		Status:    p.Status,
		Metadata:  p.Metadata,
		CreatedAt: p.StartedAt,
		UpdatedAt: p.StartedAt,
	}
	l.calls[c.ID] = c
	cp := *c
	return &cp, nil
}

func (l *fakeLedger) FinishCall(_ context.Context, callID string, endedAt time.Time, duration int) (*models.Call, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.finishErr != nil {
		return nil, l.finishErr
	}
	c, ok := l.calls[callID]
	if !ok || c.Status != models.CallStatusActive {
		return nil, nil
	}
	l.finishes++
	c.Status = models.CallStatusEnded
	c.EndedAt = &endedAt
	c.DurationSeconds = duration
	cp := *c
	return &cp, nil
}

func (l *fakeLedger) MarkCancelled(_ context.Context, callID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.calls[callID]; ok && c.Status == models.CallStatusActive {
		c.Status = models.CallStatusCancelled
	}
	return nil
}

func (l *fakeLedger) FindCallByID(_ context.Context, callID string) (*models.Call, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.calls[callID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (l *fakeLedger) ListCallsForUser(_ context.Context, userID string, limit int) ([]*models.Call, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.Call
	for i := l.seq; i > 0 && len(out) < limit; i-- {
		c, ok := l.calls[fmt.Sprintf("call-%d", i)]
		if ok && c.HasParticipant(userID) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (l *fakeLedger) get(id string) models.Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.calls[id]
}

func (l *fakeLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

type fakeUsers struct {
	mu       sync.Mutex
	seconds  map[string]int
	profiles map[string]models.UserSummary
	incErr   error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		seconds:  make(map[string]int),
		profiles: make(map[string]models.UserSummary),
	}
}

func (u *fakeUsers) IncrementVideoSeconds(_ context.Context, userID string, seconds int) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.incErr != nil {
		return u.incErr
	}
	u.seconds[userID] += seconds
	return nil
}

func (u *fakeUsers) FindSummaries(_ context.Context, ids []string) (map[string]models.UserSummary, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make(map[string]models.UserSummary, len(ids))
	for _, id := range ids {
		if p, ok := u.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (u *fakeUsers) usage(id string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.seconds[id]
}

// fakeIssuer fails on the call numbered failOn (1-based) when set.
type fakeIssuer struct {
	mu     sync.Mutex
	issued []rtctoken.Grant
	failOn int
}

func (i *fakeIssuer) IssueToken(_ context.Context, g rtctoken.Grant, _ time.Duration) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.failOn > 0 && len(i.issued)+1 == i.failOn {
		i.failOn = 0
		return "", errBackend
	}
	i.issued = append(i.issued, g)
	return fmt.Sprintf("tok-%s-%d", g.Account, len(i.issued)), nil
}

func (i *fakeIssuer) AppID() string { return "app-1" }

type notification struct {
	UserID  string
	Type    string
	Payload interface{}
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) SendToUser(userID, msgType string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{UserID: userID, Type: msgType, Payload: payload})
}

func (n *recordingNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.sent...)
}

type failingMailbox struct {
	*matchmaking.MemoryMailbox
}

func (failingMailbox) Put(context.Context, string, matchmaking.MatchResult) error {
	return errBackend
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	svc      *CallService
	ledger   *fakeLedger
	users    *fakeUsers
	issuer   *fakeIssuer
	mailbox  *matchmaking.MemoryMailbox
	notifier *recordingNotifier
	clock    *clock
}

func newHarness(cfg CallServiceConfig) *harness {
	h := &harness{
		ledger:   newFakeLedger(),
		users:    newFakeUsers(),
		issuer:   &fakeIssuer{},
		mailbox:  matchmaking.NewMemoryMailbox(),
		notifier: &recordingNotifier{},
		clock:    &clock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
	}
	h.svc = NewCallService(h.ledger, h.users, h.issuer, h.mailbox, h.notifier, cfg, zap.NewNop())
	h.svc.now = h.clock.Now
	return h
}

func member(id string, role models.Role, pref matchmaking.Preference) matchmaking.Participant {
	return matchmaking.Participant{
		ID:         id,
		Role:       role,
		Preference: pref,
		Profile:    models.UserSummary{ID: id, Name: "User " + id, FirstName: id, Role: role},
		Verified:   true,
		Premium:    true,
	}
}
