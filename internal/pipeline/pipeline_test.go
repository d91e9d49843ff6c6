package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Jayphen/dida-digest/internal/auth"
	"github.com/Jayphen/dida-digest/internal/logging"
	"github.com/Jayphen/dida-digest/internal/notify"
	"github.com/Jayphen/dida-digest/internal/redis"
	"github.com/Jayphen/dida-digest/internal/tasksource"
)

var cst = time.FixedZone("CST", 8*3600)

// 2024-05-01 10:30 CST, a Wednesday.
func fixedNow() time.Time {
	return time.Date(2024, 5, 1, 2, 30, 0, 0, time.UTC)
}

type fakeTokens struct{ err error }

func (f fakeTokens) Token(ctx context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token", nil
}

type fakeSource struct {
	projects []tasksource.Project
	tasks    map[string][]tasksource.Task
	inbox    []tasksource.Task
	listErr  error
	inboxErr error
	calls    int
}

func (f *fakeSource) Info() tasksource.SourceInfo {
	return tasksource.SourceInfo{Type: "fake", Name: "fake"}
}

func (f *fakeSource) ListProjects(ctx context.Context) ([]tasksource.Project, error) {
	f.calls++
	return f.projects, f.listErr
}

func (f *fakeSource) ProjectTasks(ctx context.Context, id string) ([]tasksource.Task, error) {
	f.calls++
	return f.tasks[id], nil
}

func (f *fakeSource) InboxTasks(ctx context.Context) ([]tasksource.Task, error) {
	f.calls++
	return f.inbox, f.inboxErr
}

func (f *fakeSource) Close() error { return nil }

type captureNotifier struct {
	messages []string
	err      error
}

func (c *captureNotifier) Deliver(ctx context.Context, text string) error {
	c.messages = append(c.messages, text)
	return c.err
}

type memRecorder struct {
	records []*redis.RunRecord
}

func (m *memRecorder) SetRun(ctx context.Context, rec *redis.RunRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func sourceWithTasks() *fakeSource {
	return &fakeSource{
		projects: []tasksource.Project{{ID: "p1", Name: "工作"}},
		tasks: map[string][]tasksource.Task{
			"p1": {
				{ID: "t1", Title: "写周报", DueDate: "2024-05-01T01:00:00.000+0000"},
				{ID: "t2", Title: "交房租", DueDate: "2024-05-03T01:00:00.000+0000", Priority: tasksource.PriorityMedium},
			},
		},
		inbox: []tasksource.Task{
			{ID: "t3", Title: "买牛奶", Priority: tasksource.PriorityLow},
		},
	}
}

func newRunner(src tasksource.TaskSource, n notify.Notifier) *Runner {
	return &Runner{
		Tokens:   fakeTokens{},
		Source:   src,
		Notifier: n,
		Log:      logging.Nop(),
		Now:      fixedNow,
		Location: cst,
	}
}

func TestRunDelivers(t *testing.T) {
	n := &captureNotifier{}
	rec := &memRecorder{}
	r := newRunner(sourceWithTasks(), n)
	r.Recorder = rec

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if !res.Delivered() {
		t.Errorf("Status = %q, want delivered", res.Status)
	}
	if len(n.messages) != 1 {
		t.Fatalf("delivered %d messages, want 1", len(n.messages))
	}

	want := "今日计划 (24-05-01)：\n" +
		"    ⏰ 09:00 写周报\n" +
		"\n" +
		"未来七天：\n" +
		"    🛎 05-03 (周五) 交房租 (中)\n" +
		"\n" +
		"无截止日期任务：\n" +
		"    📌 无截止 📦 收集箱 ⭐买牛奶 (低)"
	if n.messages[0] != want {
		t.Errorf("message =\n%q\nwant\n%q", n.messages[0], want)
	}

	counts := res.Digest.Counts()
	if counts["today"] != 1 || counts["week"] != 1 || counts["nodue"] != 1 {
		t.Errorf("Counts() = %v", counts)
	}

	if len(rec.records) != 1 {
		t.Fatalf("recorded %d runs, want 1", len(rec.records))
	}
	if rec.records[0].RunID != res.RunID || rec.records[0].Status != StatusDelivered {
		t.Errorf("record = %+v", rec.records[0])
	}
}

func TestRunNoCredentialSendsReminder(t *testing.T) {
	src := sourceWithTasks()
	n := &captureNotifier{}
	reminder := &captureNotifier{}
	r := newRunner(src, n)
	r.Tokens = fakeTokens{err: auth.ErrNoCredential}
	r.Reminder = reminder

	res, err := r.Run(context.Background())
	if !errors.Is(err, auth.ErrNoCredential) {
		t.Fatalf("error = %v, want ErrNoCredential", err)
	}
	if res.Status != StatusReminded {
		t.Errorf("Status = %q, want reminded", res.Status)
	}
	if len(reminder.messages) != 1 || reminder.messages[0] != auth.ReminderText {
		t.Errorf("reminder messages = %q", reminder.messages)
	}
	if len(n.messages) != 0 {
		t.Error("digest notifier should not be used")
	}
	if src.calls != 0 {
		t.Error("source should not be queried without a credential")
	}
}

func TestRunReminderFallsBackToNotifier(t *testing.T) {
	n := &captureNotifier{err: errors.New("webhook down")}
	r := newRunner(sourceWithTasks(), n)
	r.Tokens = fakeTokens{err: auth.ErrNoCredential}

	_, err := r.Run(context.Background())
	if !errors.Is(err, auth.ErrNoCredential) {
		t.Fatalf("error = %v, want ErrNoCredential", err)
	}
	if len(n.messages) != 1 || n.messages[0] != auth.ReminderText {
		t.Errorf("messages = %q", n.messages)
	}
}

func TestRunTokenError(t *testing.T) {
	n := &captureNotifier{}
	r := newRunner(sourceWithTasks(), n)
	r.Tokens = fakeTokens{err: errors.New("redis unreachable")}

	res, err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Status != StatusFailed {
		t.Errorf("Status = %q, want failed", res.Status)
	}
	if len(n.messages) != 0 {
		t.Error("other token errors should not send the reminder")
	}
}

func TestRunEmpty(t *testing.T) {
	tests := []struct {
		name      string
		skipEmpty bool
		status    string
		messages  []string
	}{
		{
			name:      "skip empty",
			skipEmpty: true,
			status:    StatusSkipped,
		},
		{
			name:     "send placeholder",
			status:   StatusDelivered,
			messages: []string{"今日计划 (24-05-01)：\n  暂无未完成的任务"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{
				projects: []tasksource.Project{{ID: "p1", Name: "工作"}},
				tasks: map[string][]tasksource.Task{
					"p1": {{ID: "t1", Title: "已完成", Status: tasksource.StatusDone, Priority: tasksource.PriorityHigh}},
				},
			}
			n := &captureNotifier{}
			r := newRunner(src, n)
			r.SkipEmpty = tt.skipEmpty

			res, err := r.Run(context.Background())
			if err != nil {
				t.Fatalf("Run() failed: %v", err)
			}
			if res.Status != tt.status {
				t.Errorf("Status = %q, want %q", res.Status, tt.status)
			}
			if !res.Digest.Empty() {
				t.Error("digest should be empty")
			}
			if strings.Join(n.messages, "|") != strings.Join(tt.messages, "|") {
				t.Errorf("messages = %q, want %q", n.messages, tt.messages)
			}
		})
	}
}

func TestRunDryRun(t *testing.T) {
	r := newRunner(sourceWithTasks(), nil)
	r.DryRun = true

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if res.Status != StatusDryRun {
		t.Errorf("Status = %q, want dry_run", res.Status)
	}
	if !strings.Contains(res.Digest.Text, "写周报") {
		t.Errorf("Text = %q", res.Digest.Text)
	}
}

func TestRunDeliveryFailure(t *testing.T) {
	n := &captureNotifier{err: &notify.DeliveryError{ErrCode: 93000, ErrMsg: "invalid webhook url"}}
	r := newRunner(sourceWithTasks(), n)

	res, err := r.Run(context.Background())
	if !errors.Is(err, notify.ErrDelivery) {
		t.Fatalf("error = %v, want ErrDelivery", err)
	}
	if res.Status != StatusFailed {
		t.Errorf("Status = %q, want failed", res.Status)
	}
	if len(n.messages) != 1 {
		t.Errorf("delivery attempts = %d, want exactly 1", len(n.messages))
	}
}

func TestRunPartialSourceFailure(t *testing.T) {
	src := sourceWithTasks()
	src.listErr = &tasksource.FetchError{Op: "list projects", StatusCode: 502}
	n := &captureNotifier{}
	r := newRunner(src, n)

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if !res.Stats.ListFailed {
		t.Error("Stats.ListFailed = false")
	}
	if len(n.messages) != 1 || !strings.Contains(n.messages[0], "买牛奶") {
		t.Errorf("inbox tasks should still be delivered: %q", n.messages)
	}
}

func TestRunSourceUnavailable(t *testing.T) {
	src := sourceWithTasks()
	src.listErr = &tasksource.FetchError{Op: "list projects", StatusCode: 503}
	src.inboxErr = &tasksource.FetchError{Op: "inbox", StatusCode: 503}
	n := &captureNotifier{}
	r := newRunner(src, n)

	_, err := r.Run(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("error = %v, want ErrSourceUnavailable", err)
	}
	if len(n.messages) != 0 {
		t.Error("nothing should be delivered when the source is down")
	}
}

func TestRunWithoutTokens(t *testing.T) {
	n := &captureNotifier{}
	r := newRunner(sourceWithTasks(), n)
	r.Tokens = nil

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if len(n.messages) != 1 {
		t.Errorf("messages = %d, want 1", len(n.messages))
	}
}

func TestRunMisconfigured(t *testing.T) {
	r := &Runner{Log: logging.Nop()}
	if _, err := r.Run(context.Background()); err == nil {
		t.Error("expected error without source")
	}

	r.Source = sourceWithTasks()
	if _, err := r.Run(context.Background()); err == nil {
		t.Error("expected error without notifier")
	}
}
