package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type recordingObserver struct {
	name   string
	events []PipelineEvent
}

func (r *recordingObserver) OnEvent(ctx context.Context, event PipelineEvent) {
	r.events = append(r.events, event)
}

func (r *recordingObserver) GetObserverName() string { return r.name }

type panickingObserver struct{}

func (panickingObserver) OnEvent(ctx context.Context, event PipelineEvent) { panic("boom") }
func (panickingObserver) GetObserverName() string                          { return "panicking" }

func TestEventPublisher_DeliversInOrder(t *testing.T) {
	pub := NewEventPublisher()
	rec := &recordingObserver{name: "rec"}
	pub.Subscribe(panickingObserver{})
	pub.Subscribe(rec)

	ctx := context.Background()
	for i, et := range []EventType{BatchStarted, ImageCompleted, ImageFailed, BatchCompleted} {
		pub.NotifyObservers(ctx, PipelineEvent{EventType: et, RunID: "run-1", Completed: i})
	}

	if len(rec.events) != 4 {
		t.Fatalf("got %d events, want 4", len(rec.events))
	}
	for i, ev := range rec.events {
		if ev.Completed != i {
			t.Errorf("event %d delivered out of order: %+v", i, ev)
		}
		if ev.Timestamp.IsZero() {
			t.Errorf("event %d has no timestamp", i)
		}
	}
}

func TestEventPublisher_KeepsGivenTimestamp(t *testing.T) {
	pub := NewEventPublisher()
	rec := &recordingObserver{name: "rec"}
	pub.Subscribe(rec)

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	pub.NotifyObservers(context.Background(), PipelineEvent{EventType: BatchStarted, Timestamp: ts})
	if !rec.events[0].Timestamp.Equal(ts) {
		t.Errorf("timestamp overwritten: %v", rec.events[0].Timestamp)
	}
}

func TestEventPublisher_Unsubscribe(t *testing.T) {
	pub := NewEventPublisher()
	a := &recordingObserver{name: "a"}
	b := &recordingObserver{name: "b"}
	pub.Subscribe(a)
	pub.Subscribe(b)
	pub.Unsubscribe(a)

	pub.NotifyObservers(context.Background(), PipelineEvent{EventType: BatchStarted})
	if len(a.events) != 0 || len(b.events) != 1 {
		t.Errorf("a=%d b=%d events", len(a.events), len(b.events))
	}
}

func TestMetricsObserver(t *testing.T) {
	m := NewMetricsObserver()
	ctx := context.Background()

	events := []PipelineEvent{
		{EventType: BatchStarted},
		{EventType: ImageCompleted},
		{EventType: ImageCompleted},
		{EventType: ImageFailed},
		{EventType: BatchCompleted, ProcessingTime: 300 * time.Millisecond},
		{EventType: BatchStarted},
		{EventType: ImageFetchFailed},
		{EventType: BatchCanceled},
		{EventType: BatchStarted},
		{EventType: BatchCompleted, ProcessingTime: 100 * time.Millisecond},
	}
	for _, e := range events {
		m.OnEvent(ctx, e)
	}

	got := m.GetMetrics()
	want := map[string]int64{
		"total_runs":            3,
		"completed_runs":        2,
		"canceled_runs":         1,
		"processed_images":      2,
		"failed_images":         1,
		"failed_fetches":        1,
		"total_processing_ms":   400,
		"avg_run_processing_ms": 200,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %d", k, got[k], v)
		}
	}
}

func TestProgressObserver(t *testing.T) {
	var calls [][2]int
	p := NewProgressObserver("progress", func(completed, total int) {
		calls = append(calls, [2]int{completed, total})
	})

	ctx := context.Background()
	p.OnEvent(ctx, PipelineEvent{EventType: BatchStarted, Total: 3})
	p.OnEvent(ctx, PipelineEvent{EventType: ImageCompleted, Completed: 1, Total: 3})
	p.OnEvent(ctx, PipelineEvent{EventType: ImageFailed, Completed: 2, Total: 3})
	p.OnEvent(ctx, PipelineEvent{EventType: BatchCompleted, Completed: 2, Total: 3})

	if len(calls) != 2 || calls[0] != [2]int{1, 3} || calls[1] != [2]int{2, 3} {
		t.Errorf("progress calls = %v", calls)
	}
	if p.GetObserverName() != "progress" {
		t.Errorf("name = %s", p.GetObserverName())
	}
}

func TestLoggingObserver(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.DebugLevel)

	obs := NewLoggingObserver(log)
	obs.OnEvent(context.Background(), PipelineEvent{
		EventType:    ImageFailed,
		RunID:        "run-7",
		ImageIndex:   2,
		ErrorMessage: "zero area",
		Metadata:     map[string]interface{}{"source": "upload"},
	})

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["level"] != "warning" || entry["run_id"] != "run-7" || entry["error"] != "zero area" || entry["source"] != "upload" {
		t.Errorf("unexpected log entry %v", entry)
	}
	if entry["image_index"] != float64(2) {
		t.Errorf("image_index = %v", entry["image_index"])
	}
}
