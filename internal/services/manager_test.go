package services

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-veylop/credit-reset-dashboard/internal/apperr"
	"github.com/j-veylop/credit-reset-dashboard/internal/config"
	"github.com/j-veylop/credit-reset-dashboard/internal/models"
	"github.com/j-veylop/credit-reset-dashboard/internal/services/accounts"
	"github.com/j-veylop/credit-reset-dashboard/internal/services/scheduler"
)

var shanghai = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		panic(err)
	}
	return loc
}()

var testNow = time.Date(2025, 10, 18, 12, 0, 0, 0, shanghai)

type timerReg struct {
	fn  func(time.Time)
	loc *time.Location
	at  models.TimeOfDay
}

type fakeTimer struct {
	mu   sync.Mutex
	regs map[string]timerReg
}

func (f *fakeTimer) Daily(name string, at models.TimeOfDay, loc *time.Location, fn func(time.Time)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs[name] = timerReg{at: at, loc: loc, fn: fn}
	return nil
}

func (f *fakeTimer) Every(name string, _ time.Duration, fn func(time.Time)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs[name] = timerReg{fn: fn}
	return nil
}

func (f *fakeTimer) Next(name string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.regs[name]
	if !ok || r.loc == nil {
		return time.Time{}, false
	}
	return r.at.On(testNow, r.loc), true
}

func (f *fakeTimer) CancelAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs = map[string]timerReg{}
}

func (f *fakeTimer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.regs)
}

// fakeRemote serves one monthly subscription that can be reset.
type fakeRemote struct {
	resets atomic.Int32
}

func (r *fakeRemote) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch req.URL.Path {
	case "/api/usage":
		_, _ = io.WriteString(w, `{"code":0,"ok":true,"data":{"keyId":"k1","currentCredits":12.5,"creditLimit":50}}`)
	case "/api/subscription":
		_, _ = io.WriteString(w, `{"code":0,"ok":true,"data":[
			{"id":9,"subscriptionPlanName":"PRO","currentCredits":12.5,"resetTimes":2,"isActive":true,
			 "lastCreditReset":null,"subscriptionPlan":{"subscriptionName":"PRO","planType":"MONTHLY","creditLimit":50}}
		]}`)
	case "/api/reset-credits/9":
		r.resets.Add(1)
		_, _ = io.WriteString(w, `{"code":0,"ok":true,"data":{"subscriptionId":9,"newCredits":50}}`)
	default:
		http.NotFound(w, req)
	}
}

func newTestManager(t *testing.T) (*Manager, *fakeTimer, *fakeRemote) {
	t.Helper()

	remote := &fakeRemote{}
	srv := httptest.NewServer(remote)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := &config.Config{
		DatabasePath:   filepath.Join(dir, "test.db"),
		AccountsPath:   filepath.Join(dir, "accounts.json"),
		APIBaseURL:     srv.URL,
		Timezone:       "Asia/Shanghai",
		FirstReset:     "18:55",
		SecondReset:    "23:56",
		RequestTimeout: 2 * time.Second,
		Notifications:  false,
	}

	timer := &fakeTimer{regs: map[string]timerReg{}}
	mgr, err := NewManager(cfg, WithTimer(timer), WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	return mgr, timer, remote
}

func TestNewManager_InstallsSchedule(t *testing.T) {
	mgr, timer, _ := newTestManager(t)
	ctx := context.Background()

	assert.Equal(t, 3, timer.count())

	view, err := mgr.GetSchedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultScheduleConfig(), view.Config)
	require.NotNil(t, view.Next.First)
	assert.True(t, time.Date(2025, 10, 18, 18, 55, 0, 0, shanghai).Equal(*view.Next.First))

	prefs, err := mgr.GetPreferences(ctx)
	require.NoError(t, err)
	assert.False(t, prefs.NotificationsEnabled)
	assert.Equal(t, models.DefaultAuditRetention, prefs.AuditRetention)
}

func TestManager_AccountLifecycle(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	acc, err := mgr.AddAccount(ctx, "main", "sk-secret-1234")
	require.NoError(t, err)
	assert.Equal(t, "********1234", acc.MaskedKey)

	_, err = mgr.AddAccount(ctx, "copy", "sk-secret-1234")
	assert.Equal(t, apperr.CodeDuplicateCredential, apperr.CodeOf(err))

	disabled := false
	updated, err := mgr.UpdateAccount(ctx, acc.ID, accounts.Update{Enabled: &disabled})
	require.NoError(t, err)
	assert.False(t, updated.Enabled)

	list := mgr.ListAccounts()
	require.Len(t, list, 1)
	assert.Equal(t, acc.ID, list[0].ID)

	require.NoError(t, mgr.DeleteAccount(ctx, acc.ID))
	assert.Empty(t, mgr.ListAccounts())
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(mgr.DeleteAccount(ctx, acc.ID)))

	logs, err := mgr.GetLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "account_deleted", logs[0].Event)
	assert.Equal(t, "account_added", logs[2].Event)
}

func TestManager_SubscribeReceivesAccountChanges(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	ch, _ := mgr.Subscribe()
	_, err := mgr.AddAccount(context.Background(), "main", "sk-1")
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if changed, ok := ev.(AccountsChangedEvent); ok && len(changed.Accounts) == 1 {
				mgr.Unsubscribe(ch)
				return
			}
		case <-deadline:
			t.Fatal("no AccountsChangedEvent with the new account")
		}
	}
}

func TestManager_ManualReset(t *testing.T) {
	mgr, _, remote := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.ManualReset(ctx)
	assert.Equal(t, apperr.CodeNoAccounts, apperr.CodeOf(err))

	acc, err := mgr.AddAccount(ctx, "main", "sk-1")
	require.NoError(t, err)

	ch, _ := mgr.Subscribe()

	res, err := mgr.ManualReset(ctx)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "reset 1 subscription(s) across 1 account(s)", res.Message)
	assert.Equal(t, int32(1), remote.resets.Load())

	require.NotNil(t, mgr.LastRun())
	assert.Equal(t, models.ResetManual, mgr.LastRun().ResetType)

	history, err := mgr.GetHistory(ctx, acc.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(9), history[0].SubscriptionID)
	assert.Equal(t, 50.0, history[0].CreditsAfter)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if run, ok := ev.(RunFinishedEvent); ok {
				assert.Equal(t, 1, run.Summary.Resets)
				return
			}
		case <-deadline:
			t.Fatal("no RunFinishedEvent")
		}
	}
}

func TestManager_UpdateSchedule(t *testing.T) {
	mgr, timer, _ := newTestManager(t)
	ctx := context.Background()

	bad := models.DefaultScheduleConfig()
	bad.FirstReset = models.TimeOfDay{Hour: 25}
	_, err := mgr.UpdateSchedule(ctx, bad)
	assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))

	view, err := mgr.SetScheduleEnabled(ctx, false)
	require.NoError(t, err)
	assert.False(t, view.Config.Enabled)
	assert.Nil(t, view.Next.First)
	assert.Zero(t, timer.count())

	utc := models.DefaultScheduleConfig()
	utc.Timezone = "UTC"
	view, err = mgr.UpdateSchedule(ctx, utc)
	require.NoError(t, err)
	assert.Equal(t, "UTC", view.Config.Timezone)
	assert.Equal(t, 3, timer.count())
	assert.Equal(t, "UTC", mgr.resets.Location().String())
}

func TestManager_UpdatePreferences(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.UpdatePreferences(ctx, models.Preferences{AuditRetention: -1})
	assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))

	prefs, err := mgr.UpdatePreferences(ctx, models.Preferences{NotificationsEnabled: true, AuditRetention: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, prefs.AuditRetention)
	assert.True(t, mgr.notifier.Enabled())

	stored, err := mgr.GetPreferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, prefs, stored)
}

func TestManager_GetStatus(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.AddAccount(ctx, "main", "sk-1")
	require.NoError(t, err)

	st, err := mgr.GetStatus(ctx)
	require.NoError(t, err)
	assert.True(t, st.Connected)
	require.Len(t, st.Accounts, 1)

	a := st.Accounts[0]
	assert.True(t, a.Connected)
	assert.Empty(t, a.Error)
	require.NotNil(t, a.Usage)
	assert.Equal(t, 12.5, a.Usage.CurrentCredits)
	require.NotNil(t, a.Primary)
	assert.Equal(t, int64(9), a.Primary.ID)
	assert.Equal(t, 2, a.RemainingResets)
	assert.False(t, a.CooldownActive)

	require.NotNil(t, st.NextReset)
	assert.Equal(t, models.ResetFirst, st.NextResetType)
	assert.True(t, time.Date(2025, 10, 18, 18, 55, 0, 0, shanghai).Equal(*st.NextReset))
	assert.Positive(t, st.RateTokens)
}

func TestManager_GetUsage(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.GetUsage(ctx, "")
	assert.Equal(t, apperr.CodeNoAccounts, apperr.CodeOf(err))

	_, err = mgr.GetUsage(ctx, "missing")
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	acc, err := mgr.AddAccount(ctx, "main", "sk-1")
	require.NoError(t, err)

	usage, err := mgr.GetUsage(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, usage.CreditLimit)
}

func TestManager_ClearLogs(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.AddAccount(ctx, "main", "sk-1")
	require.NoError(t, err)

	n, err := mgr.ClearLogs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	logs, err := mgr.GetLogs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestManager_CloseIsIdempotent(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	require.NoError(t, mgr.Close())
	require.NoError(t, mgr.Close())
}

var _ scheduler.Timer = (*fakeTimer)(nil)
