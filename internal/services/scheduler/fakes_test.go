package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/j-veylop/credit-reset-dashboard/internal/models"
)

type registration struct {
	fn       func(time.Time)
	loc      *time.Location
	at       models.TimeOfDay
	interval time.Duration
}

type fakeTimer struct {
	regs      map[string]registration
	mu        sync.Mutex
	cancelled int
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{regs: map[string]registration{}}
}

func (f *fakeTimer) Daily(name string, at models.TimeOfDay, loc *time.Location, fn func(time.Time)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs[name] = registration{at: at, loc: loc, fn: fn}
	return nil
}

func (f *fakeTimer) Every(name string, interval time.Duration, fn func(time.Time)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs[name] = registration{interval: interval, fn: fn}
	return nil
}

func (f *fakeTimer) Next(name string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.regs[name]
	if !ok || r.loc == nil {
		return time.Time{}, false
	}
	return r.at.On(testDay, r.loc), true
}

func (f *fakeTimer) CancelAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs = map[string]registration{}
	f.cancelled++
}

func (f *fakeTimer) Fire(name string, at time.Time) {
	f.mu.Lock()
	r, ok := f.regs[name]
	f.mu.Unlock()
	if ok {
		r.fn(at)
	}
}

func (f *fakeTimer) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for n := range f.regs {
		out = append(out, n)
	}
	return out
}

type memStore struct {
	cfg   models.ScheduleConfig
	state models.ExecutionDayState
	mu    sync.Mutex
	saves int
}

func (m *memStore) GetScheduleConfig(context.Context) (models.ScheduleConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg, nil
}

func (m *memStore) SaveScheduleConfig(_ context.Context, cfg models.ScheduleConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	return nil
}

func (m *memStore) GetExecutionState(context.Context) (models.ExecutionDayState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

func (m *memStore) SaveExecutionState(_ context.Context, s models.ExecutionDayState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
	m.saves++
	return nil
}

type staticAccounts []models.Account

func (a staticAccounts) EnabledAccounts() []models.Account { return a }

type fakeRunner struct {
	delay  time.Duration
	status models.RunStatus
	calls  atomic.Int32
	// started is closed when the first call begins, if set.
	started chan struct{}
	once    sync.Once
}

// ProcessAccounts fails every account when ctx is done before the delay ends.
func (r *fakeRunner) ProcessAccounts(ctx context.Context, accounts []models.Account, t models.ResetType) []models.AccountResetResult {
	r.calls.Add(1)
	if r.started != nil {
		r.once.Do(func() { close(r.started) })
	}
	status := r.status
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			status = models.RunFailed
		}
	}
	if status == "" {
		status = models.RunSuccess
	}
	out := make([]models.AccountResetResult, len(accounts))
	for i, a := range accounts {
		out[i] = models.AccountResetResult{AccountID: a.ID, ResetType: t, Status: status, SuccessCount: 1, Summary: "1 reset, 0 skipped"}
	}
	return out
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) Notify(title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, title+": "+message)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []models.AuditEntry
}

func (a *fakeAudit) AppendAudit(_ context.Context, e models.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

type fakeMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *fakeMetrics) SchedulerRun(trigger, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[trigger+"/"+result]++
}

func (m *fakeMetrics) get(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
