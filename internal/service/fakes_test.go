package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"taskhub/internal/model"
	"taskhub/internal/store/storetest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeVerifier 把签名当作 "sig:<地址>" 解析。
type fakeVerifier struct{}

func (fakeVerifier) Recover(_, signature string) (string, error) {
	const prefix = "sig:"
	if len(signature) <= len(prefix) || signature[:len(prefix)] != prefix {
		return "", errors.New("malformed signature")
	}
	return signature[len(prefix):], nil
}

type fakeTokens struct{}

func (fakeTokens) Issue(userID, wallet string) (string, error) {
	return "token-" + userID + "-" + wallet, nil
}

type fakeDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (f *fakeDedup) Claim(_ context.Context, scope, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	k := scope + ":" + value
	if f.seen[k] {
		return true, nil
	}
	f.seen[k] = true
	return false, nil
}

func (f *fakeDedup) Release(_ context.Context, scope, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.seen, scope+":"+value)
	return nil
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func (r *recordingAudit) Record(e model.AuditEntry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return true
}

func (r *recordingAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

// fakeChallenges 内存版挑战存储。
type fakeChallenges struct {
	mu    sync.Mutex
	items map[string]*model.Challenge
	ttl   time.Duration
	now   func() time.Time
	seq   int
}

func newFakeChallenges(now func() time.Time) *fakeChallenges {
	return &fakeChallenges{items: map[string]*model.Challenge{}, ttl: 5 * time.Minute, now: now}
}

func (f *fakeChallenges) Issue(_ context.Context, wallet string) (*model.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	now := f.now()
	ch := &model.Challenge{
		WalletAddress: wallet,
		Nonce:         "nonce_" + string(rune('a'+f.seq)),
		ExpiresAt:     now.Add(f.ttl),
		CreatedAt:     now,
	}
	cp := *ch
	f.items[wallet] = &cp
	return ch, nil
}

func (f *fakeChallenges) Get(_ context.Context, wallet string) (*model.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.items[wallet]; ok {
		cp := *ch
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeChallenges) Consume(_ context.Context, wallet, nonce string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.items[wallet]
	if !ok || ch.Nonce != nonce || ch.Used {
		return false, nil
	}
	ch.Used = true
	return true, nil
}

// fixture 组装全部服务，共用一个内存存储与可控时钟。
type fixture struct {
	db       *storetest.DB
	clock    time.Time
	audit    *recordingAudit
	auth     *AuthService
	groups   *GroupService
	tasks    *TaskService
	evidence *EvidenceService
	comments *CommentService
	users    *UserService
}

func newFixture() *fixture {
	f := &fixture{
		db:    storetest.New(),
		clock: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		audit: &recordingAudit{},
	}
	now := func() time.Time { return f.clock }
	logger := discardLogger()
	db := f.db

	f.auth = NewAuthService(newFakeChallenges(now), storetest.UserStore{DB: db}, fakeVerifier{}, fakeTokens{}, logger)
	f.auth.now = now
	f.groups = NewGroupService(storetest.GroupStore{DB: db}, storetest.MemberStore{DB: db}, logger)
	f.groups.now = now
	f.tasks = NewTaskService(storetest.TaskStore{DB: db}, storetest.MemberStore{DB: db}, storetest.EvidenceStore{DB: db}, f.audit, logger)
	f.tasks.now = now
	f.evidence = NewEvidenceService(f.tasks, storetest.EvidenceStore{DB: db}, storetest.UserStore{DB: db}, fakeVerifier{}, &fakeDedup{}, nil, logger)
	f.evidence.now = now
	f.comments = NewCommentService(storetest.CommentStore{DB: db}, storetest.TaskStore{DB: db}, storetest.MemberStore{DB: db}, f.audit, logger)
	f.comments.now = now
	f.users = NewUserService(storetest.UserStore{DB: db}, storetest.GroupStore{DB: db}, storetest.MemberStore{DB: db}, storetest.TaskStore{DB: db}, storetest.EvidenceStore{DB: db}, logger)
	f.users.now = now
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

// login 走完整挑战流程，返回调用方身份。
func (f *fixture) login(wallet string) Actor {
	ctx := context.Background()
	if _, err := f.auth.CreateChallenge(ctx, wallet); err != nil {
		panic(err)
	}
	res, err := f.auth.Verify(ctx, wallet, "sig:"+NormalizeWallet(wallet), "")
	if err != nil {
		panic(err)
	}
	return Actor{UserID: res.UserID, WalletAddress: res.WalletAddress, IP: "127.0.0.1", UserAgent: "test"}
}
