package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"quizinsight/internal/models"
	"quizinsight/internal/serviceinterfaces"
	contextutils "quizinsight/internal/utils"

	"github.com/google/uuid"
)

type fakeUsers map[int]bool

func (f fakeUsers) UserExists(_ context.Context, userID int) (bool, error) {
	return f[userID], nil
}

type fakeCatalog struct {
	meta map[int]*models.QuizMetadata
	// errs overrides the lookup result for specific quizzes
	errs map[int]error
}

func (f *fakeCatalog) GetQuizMetadata(_ context.Context, quizID int) (*models.QuizMetadata, error) {
	if err, ok := f.errs[quizID]; ok {
		return nil, err
	}
	m, ok := f.meta[quizID]
	if !ok {
		return nil, contextutils.NotFoundf("quiz %d", quizID)
	}
	cp := *m
	return &cp, nil
}

type claim struct {
	token uuid.UUID
	at    time.Time
}

// fakeMistakeRepo mirrors the compare-and-swap semantics of the SQL repository
type fakeMistakeRepo struct {
	mu      sync.Mutex
	nextID  int
	records map[int]*models.MistakeRecord
	claims  map[int]claim
	// beforeAmend runs outside the lock before each AmendIfVersion
	beforeAmend func(id int)
}

var _ serviceinterfaces.MistakeRepository = (*fakeMistakeRepo)(nil)

func newFakeMistakeRepo() *fakeMistakeRepo {
	return &fakeMistakeRepo{
		records: make(map[int]*models.MistakeRecord),
		claims:  make(map[int]claim),
	}
}

func (f *fakeMistakeRepo) find(userID, quizID int) *models.MistakeRecord {
	for _, r := range f.records {
		if r.UserID == userID && r.QuizID == quizID {
			return r
		}
	}
	return nil
}

func (f *fakeMistakeRepo) Get(_ context.Context, userID, quizID int) (*models.MistakeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.find(userID, quizID)
	if r == nil {
		return nil, contextutils.NotFoundf("mistake record for user %d quiz %d", userID, quizID)
	}
	cp := *r
	return &cp, nil
}

func (f *fakeMistakeRepo) Create(_ context.Context, record *models.MistakeRecord) (*models.MistakeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.find(record.UserID, record.QuizID) != nil {
		return nil, contextutils.WrapError(contextutils.ErrConflict, "duplicate mistake record")
	}
	f.nextID++
	stored := *record
	stored.ID = f.nextID
	stored.Version = 1
	stored.IsAnalyzed = false
	stored.CreatedAt = record.LastAttemptedAt
	f.records[stored.ID] = &stored
	cp := stored
	return &cp, nil
}

func (f *fakeMistakeRepo) AmendIfVersion(_ context.Context, id, expectedVersion int, wrong bool, answer string, at time.Time) (*models.MistakeRecord, error) {
	if f.beforeAmend != nil {
		f.beforeAmend(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok || r.Version != expectedVersion {
		return nil, contextutils.WrapError(contextutils.ErrConflict, "stale version")
	}
	r.TimesAttempted++
	if wrong {
		r.TimesWrong++
	}
	if at.After(r.LastAttemptedAt) {
		r.LastAttemptedAt = at
	}
	a := answer
	r.UserAnswer = &a
	r.IsAnalyzed = false
	r.Version++
	delete(f.claims, id)
	cp := *r
	return &cp, nil
}

func (f *fakeMistakeRepo) ClaimPending(_ context.Context, limit int, token uuid.UUID, now time.Time, lease time.Duration) ([]models.MistakeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var eligible []*models.MistakeRecord
	for id, r := range f.records {
		if r.IsAnalyzed {
			continue
		}
		if c, held := f.claims[id]; held && !c.at.Before(now.Add(-lease)) {
			continue
		}
		eligible = append(eligible, r)
	}
	sort.Slice(eligible, func(i, j int) bool {
		if !eligible[i].LastAttemptedAt.Equal(eligible[j].LastAttemptedAt) {
			return eligible[i].LastAttemptedAt.Before(eligible[j].LastAttemptedAt)
		}
		return eligible[i].ID < eligible[j].ID
	})
	if len(eligible) > limit {
		eligible = eligible[:limit]
	}

	out := make([]models.MistakeRecord, 0, len(eligible))
	for _, r := range eligible {
		f.claims[r.ID] = claim{token: token, at: now}
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeMistakeRepo) MarkAnalyzed(_ context.Context, id, version int, token uuid.UUID, weakPointID int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	c, held := f.claims[id]
	if !ok || !held || c.token != token || r.Version != version {
		return false, nil
	}
	wp := weakPointID
	r.UserWeakPointID = &wp
	r.IsAnalyzed = true
	delete(f.claims, id)
	return true, nil
}

func (f *fakeMistakeRepo) ReleaseClaim(_ context.Context, id int, token uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, held := f.claims[id]; held && c.token == token {
		delete(f.claims, id)
	}
	return nil
}

func (f *fakeMistakeRepo) ListByUser(_ context.Context, userID int) ([]models.MistakeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.MistakeRecord
	for _, r := range f.records {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeMistakeRepo) CountPending(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.records {
		if !r.IsAnalyzed {
			n++
		}
	}
	return n, nil
}

// put stores a record as-is, for seeding inconsistent data
func (f *fakeMistakeRepo) put(r models.MistakeRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ID == 0 {
		f.nextID++
		r.ID = f.nextID
	} else if r.ID > f.nextID {
		f.nextID = r.ID
	}
	if r.Version == 0 {
		r.Version = 1
	}
	f.records[r.ID] = &r
}

func (f *fakeMistakeRepo) snapshot(id int) models.MistakeRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.records[id]
}

type fakeWeakPointRepo struct {
	mu      sync.Mutex
	nextID  int
	points  map[string]*models.WeakPoint
	creates int
}

var _ serviceinterfaces.WeakPointRepository = (*fakeWeakPointRepo)(nil)

func newFakeWeakPointRepo() *fakeWeakPointRepo {
	return &fakeWeakPointRepo{points: make(map[string]*models.WeakPoint)}
}

func weakPointKey(userID int, key string) string {
	return fmt.Sprintf("%d/%s", userID, key)
}

func (f *fakeWeakPointRepo) FindOrCreate(_ context.Context, userID int, categoryKey string, kind models.ContentKind, label string) (*models.WeakPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := weakPointKey(userID, categoryKey)
	if wp, ok := f.points[k]; ok {
		cp := *wp
		return &cp, nil
	}
	f.nextID++
	f.creates++
	wp := &models.WeakPoint{ID: f.nextID, UserID: userID, CategoryKey: categoryKey, Kind: kind, Label: label}
	f.points[k] = wp
	cp := *wp
	return &cp, nil
}

func (f *fakeWeakPointRepo) ListByUser(_ context.Context, userID int) ([]models.WeakPointSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.WeakPointSummary
	for _, wp := range f.points {
		if wp.UserID == userID {
			out = append(out, models.WeakPointSummary{WeakPoint: *wp})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryKey < out[j].CategoryKey })
	return out, nil
}

func (f *fakeWeakPointRepo) byKey(userID int, key string) *models.WeakPoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.points[weakPointKey(userID, key)]
}

type fakeHistory struct {
	mu       sync.Mutex
	nextID   int64
	attempts []models.Attempt
	// failAppends makes the next n Appends return appendErr
	failAppends int
	appendErr   error
}

var _ serviceinterfaces.AttemptHistory = (*fakeHistory)(nil)

func (f *fakeHistory) Append(_ context.Context, a *models.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAppends > 0 {
		f.failAppends--
		return f.appendErr
	}
	f.nextID++
	a.ID = f.nextID
	f.attempts = append(f.attempts, *a)
	return nil
}

func (f *fakeHistory) ListByUser(_ context.Context, userID int) ([]models.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Attempt
	for _, a := range f.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeHistory) UsersActiveSince(_ context.Context, since time.Time) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[int]bool{}
	var out []int
	for _, a := range f.attempts {
		if !a.AttemptedAt.Before(since) && !seen[a.UserID] {
			seen[a.UserID] = true
			out = append(out, a.UserID)
		}
	}
	sort.Ints(out)
	return out, nil
}

// add appends attempts for user on quizID at consecutive minutes after base
func (f *fakeHistory) add(userID, quizID int, base time.Time, outcomes ...bool) {
	for _, ok := range outcomes {
		_ = f.Append(context.Background(), &models.Attempt{
			UserID:      userID,
			QuizID:      quizID,
			WasCorrect:  ok,
			AttemptedAt: base.Add(time.Duration(len(f.attempts)) * time.Minute),
		})
	}
}

type fakeRanking struct {
	rank  int
	calls []int
}

func (f *fakeRanking) RankFor(_ context.Context, _ int, points int) (int, error) {
	f.calls = append(f.calls, points)
	return f.rank, nil
}

type fakePlacementRepo struct {
	mu      sync.Mutex
	tiers   map[int]models.DifficultyTier
	reports map[int][]*models.ScoreReport
}

var _ serviceinterfaces.PlacementResultRepository = (*fakePlacementRepo)(nil)

func newFakePlacementRepo() *fakePlacementRepo {
	return &fakePlacementRepo{
		tiers:   make(map[int]models.DifficultyTier),
		reports: make(map[int][]*models.ScoreReport),
	}
}

func (f *fakePlacementRepo) Save(_ context.Context, userID int, report *models.ScoreReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tiers[userID] = report.Tier
	f.reports[userID] = append(f.reports[userID], report)
	return nil
}

func (f *fakePlacementRepo) LatestTier(_ context.Context, userID int) (models.DifficultyTier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tiers[userID], nil
}

type fakeDashboardRepo struct {
	mu    sync.Mutex
	saved map[int]models.DashboardStats
	saves int
}

var _ serviceinterfaces.DashboardRepository = (*fakeDashboardRepo)(nil)

func newFakeDashboardRepo() *fakeDashboardRepo {
	return &fakeDashboardRepo{saved: make(map[int]models.DashboardStats)}
}

func (f *fakeDashboardRepo) Save(_ context.Context, stats *models.DashboardStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[stats.UserID] = *stats
	f.saves++
	return nil
}

func (f *fakeDashboardRepo) Get(_ context.Context, userID int) (*models.DashboardStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.saved[userID]
	if !ok {
		return nil, contextutils.NotFoundf("dashboard stats for user %d", userID)
	}
	return &s, nil
}

// fakeAttemptTx restores both fakes when the unit of work fails. It is not isolated
// from concurrent callers, so tests using it submit serially.
type fakeAttemptTx struct {
	mistakes *fakeMistakeRepo
	history  *fakeHistory
	commits  int
	aborts   int
}

var _ serviceinterfaces.AttemptTransactor = (*fakeAttemptTx)(nil)

func (f *fakeAttemptTx) InTx(ctx context.Context, fn func(ctx context.Context, mistakes serviceinterfaces.MistakeRepository, history serviceinterfaces.AttemptHistory) error) error {
	f.mistakes.mu.Lock()
	nextID := f.mistakes.nextID
	records := make(map[int]models.MistakeRecord, len(f.mistakes.records))
	for id, r := range f.mistakes.records {
		records[id] = *r
	}
	claims := make(map[int]claim, len(f.mistakes.claims))
	for id, c := range f.mistakes.claims {
		claims[id] = c
	}
	f.mistakes.mu.Unlock()

	f.history.mu.Lock()
	historyID := f.history.nextID
	attempts := append([]models.Attempt(nil), f.history.attempts...)
	f.history.mu.Unlock()

	if err := fn(ctx, f.mistakes, f.history); err != nil {
		f.aborts++
		f.mistakes.mu.Lock()
		f.mistakes.nextID = nextID
		f.mistakes.records = make(map[int]*models.MistakeRecord, len(records))
		for id, r := range records {
			rec := r
			f.mistakes.records[id] = &rec
		}
		f.mistakes.claims = claims
		f.mistakes.mu.Unlock()

		f.history.mu.Lock()
		f.history.nextID = historyID
		f.history.attempts = attempts
		f.history.mu.Unlock()
		return err
	}
	f.commits++
	return nil
}
