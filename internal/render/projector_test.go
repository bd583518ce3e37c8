package render

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"slackmcp/internal/slack"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// countingResolver maps IDs to fixed handles and records how many times each
// ID is resolved.
type countingResolver struct {
	mu      sync.Mutex
	handles map[string]string
	calls   map[string]int
}

func newCountingResolver(handles map[string]string) *countingResolver {
	return &countingResolver{
		handles: handles,
		calls:   make(map[string]int),
	}
}

func (r *countingResolver) Resolve(_ context.Context, userID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls[userID]++
	if handle, found := r.handles[userID]; found {
		return handle
	}

	return userID
}

func (r *countingResolver) totalCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := 0
	for _, count := range r.calls {
		total += count
	}

	return total
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Mode
		wantErr bool
	}{
		{name: "empty defaults to compact", input: "", want: ModeCompact},
		{name: "compact", input: "compact", want: ModeCompact},
		{name: "structured", input: "structured", want: ModeStructured},
		{name: "case insensitive", input: "Structured", want: ModeStructured},
		{name: "unsupported", input: "yaml", wantErr: true},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseMode(testCase.input)
			if testCase.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != testCase.want {
				t.Fatalf("mode = %q, want %q", got, testCase.want)
			}
		})
	}
}

func TestProjectCompactShape(t *testing.T) {
	t.Parallel()

	resolver := newCountingResolver(map[string]string{
		"U1": "alice",
		"U2": "bob",
	})
	projector, err := NewProjector(resolver, ModeCompact)
	if err != nil {
		t.Fatalf("new projector: %v", err)
	}

	got := projector.Project(context.Background(), []slack.Message{
		{Text: "hi <@U1>", User: "U2", TS: "100.1"},
	})

	want := "[100.1] @bob: hi @alice"
	if got != want {
		t.Fatalf("projection = %q, want %q", got, want)
	}
}

func TestProjectStructuredShape(t *testing.T) {
	t.Parallel()

	resolver := newCountingResolver(map[string]string{
		"U1": "alice",
		"U2": "bob",
	})
	projector, err := NewProjector(resolver, ModeStructured)
	if err != nil {
		t.Fatalf("new projector: %v", err)
	}

	got := projector.Project(context.Background(), []slack.Message{
		{Text: "hi <@U1>", User: "U2", TS: "100.1"},
	})

	var records []Record
	if err := json.Unmarshal([]byte(got), &records); err != nil {
		t.Fatalf("decode structured projection: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("record count = %d, want 1", len(records))
	}
	if records[0].Text != "hi @alice" {
		t.Fatalf("text = %q, want %q", records[0].Text, "hi @alice")
	}
	if records[0].User != "bob" {
		t.Fatalf("user = %q, want %q", records[0].User, "bob")
	}
	if records[0].TS != "100.1" {
		t.Fatalf("ts = %q, want %q", records[0].TS, "100.1")
	}
	if records[0].ThreadTS != "" {
		t.Fatalf("thread_ts = %q, want empty", records[0].ThreadTS)
	}
}

func TestProjectThreadSuffix(t *testing.T) {
	t.Parallel()

	resolver := newCountingResolver(map[string]string{"U1": "alice"})
	projector, err := NewProjector(resolver, ModeCompact)
	if err != nil {
		t.Fatalf("new projector: %v", err)
	}

	tests := []struct {
		name    string
		message slack.Message
		want    string
	}{
		{
			name:    "thread suffix when thread_ts differs",
			message: slack.Message{Text: "reply", User: "U1", TS: "200.2", ThreadTS: "100.1"},
			want:    "[200.2] @alice: reply [thread:100.1]",
		},
		{
			name:    "no suffix when thread_ts equals ts",
			message: slack.Message{Text: "root", User: "U1", TS: "100.1", ThreadTS: "100.1"},
			want:    "[100.1] @alice: root",
		},
		{
			name:    "no suffix when thread_ts absent",
			message: slack.Message{Text: "plain", User: "U1", TS: "100.1"},
			want:    "[100.1] @alice: plain",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got := projector.Project(context.Background(), []slack.Message{testCase.message})
			if got != testCase.want {
				t.Fatalf("projection = %q, want %q", got, testCase.want)
			}
		})
	}
}

func TestProjectResolvesEachUserOnce(t *testing.T) {
	t.Parallel()

	resolver := newCountingResolver(map[string]string{
		"U1": "alice",
		"U2": "bob",
		"U3": "carol",
	})
	projector, err := NewProjector(resolver, ModeCompact, WithResolveConcurrency(2))
	if err != nil {
		t.Fatalf("new projector: %v", err)
	}

	// Five messages referencing three unique users as authors and mentions.
	projector.Project(context.Background(), []slack.Message{
		{Text: "hi <@U2> and <@U3>", User: "U1", TS: "1.0"},
		{Text: "hello <@U1>", User: "U2", TS: "2.0"},
		{Text: "<@U1> <@U1> <@U1>", User: "U2", TS: "3.0"},
		{Text: "no mentions", User: "U3", TS: "4.0"},
		{Text: "again <@U3|carol>", User: "U1", TS: "5.0"},
	})

	if got := resolver.totalCalls(); got != 3 {
		t.Fatalf("resolution attempts = %d, want 3", got)
	}
	for _, id := range []string{"U1", "U2", "U3"} {
		if count := resolver.calls[id]; count != 1 {
			t.Fatalf("resolutions for %s = %d, want 1", id, count)
		}
	}
}

func TestProjectRewritesLabeledMentions(t *testing.T) {
	t.Parallel()

	resolver := newCountingResolver(map[string]string{"U7": "dave"})
	projector, err := NewProjector(resolver, ModeCompact)
	if err != nil {
		t.Fatalf("new projector: %v", err)
	}

	got := projector.Project(context.Background(), []slack.Message{
		{Text: "ping <@U7|old-name>", User: "U7", TS: "9.9"},
	})

	want := "[9.9] @dave: ping @dave"
	if got != want {
		t.Fatalf("projection = %q, want %q", got, want)
	}
}

func TestProjectUnresolvedAuthorFallsBackToID(t *testing.T) {
	t.Parallel()

	resolver := newCountingResolver(nil)
	projector, err := NewProjector(resolver, ModeCompact)
	if err != nil {
		t.Fatalf("new projector: %v", err)
	}

	got := projector.Project(context.Background(), []slack.Message{
		{Text: "orphan", User: "U404", TS: "1.1"},
	})

	want := "[1.1] @U404: orphan"
	if got != want {
		t.Fatalf("projection = %q, want %q", got, want)
	}
}

func TestProjectEmptyBatch(t *testing.T) {
	t.Parallel()

	resolver := newCountingResolver(nil)

	compact, err := NewProjector(resolver, ModeCompact)
	if err != nil {
		t.Fatalf("new compact projector: %v", err)
	}
	if got := compact.Project(context.Background(), nil); got != "" {
		t.Fatalf("compact empty batch = %q, want empty", got)
	}

	structured, err := NewProjector(resolver, ModeStructured)
	if err != nil {
		t.Fatalf("new structured projector: %v", err)
	}
	if got := structured.Project(context.Background(), nil); got != "[]" {
		t.Fatalf("structured empty batch = %q, want []", got)
	}
}

func TestNewProjectorRejectsInvalidArguments(t *testing.T) {
	t.Parallel()

	if _, err := NewProjector(nil, ModeCompact); err == nil {
		t.Fatal("expected error for nil resolver")
	}
	if _, err := NewProjector(newCountingResolver(nil), Mode("yaml")); err == nil {
		t.Fatal("expected error for unsupported mode")
	}
}
