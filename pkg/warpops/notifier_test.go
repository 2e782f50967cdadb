package warpops

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/warpdl/warpops/pkg/logger"
)

func TestEventPump_DeliversInOrder(t *testing.T) {
	rec := &recorder{}
	p := newEventPump(rec, logger.NewNopLogger())
	go p.run()
	for i := 0; i < 100; i++ {
		p.publish(TaskStartedEvent{baseEvent: newBaseEvent(), Task: TaskID(i)})
	}
	p.stop()

	events := rec.all()
	if len(events) != 100 {
		t.Fatalf("stop must drain the backlog, got %d events", len(events))
	}
	for i, ev := range events {
		if ev.(TaskStartedEvent).Task != TaskID(i) {
			t.Fatalf("event %d out of order", i)
		}
		if seq := ev.(TaskStartedEvent).Seq; seq != uint64(i+1) {
			t.Fatalf("event %d has sequence %d", i, seq)
		}
	}
	p.publish(TaskStartedEvent{baseEvent: newBaseEvent()})
	if len(rec.all()) != 100 {
		t.Fatal("events published after stop must be dropped")
	}
}

func TestEventPump_SurvivesNotifierPanic(t *testing.T) {
	rec := &recorder{}
	calls := 0
	n := MultiNotifier{
		NotifierFunc(func(Event) {
			calls++
			if calls == 1 {
				panic("bad notifier")
			}
		}),
		rec,
	}
	p := newEventPump(n, logger.NewNopLogger())
	go p.run()
	p.publish(TaskStartedEvent{baseEvent: newBaseEvent(), Task: 1})
	p.publish(TaskStartedEvent{baseEvent: newBaseEvent(), Task: 2})
	p.stop()

	events := rec.all()
	if len(events) != 1 || events[0].(TaskStartedEvent).Task != 2 {
		t.Fatalf("expected delivery to continue after a panic, got %+v", events)
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewStandardLogger(log.New(&buf, "", 0))
	n := NewLogNotifier(l)
	n.Notify(TaskFailedEvent{
		baseEvent: newBaseEvent(),
		Task:      7,
		Reason:    Failure{Kind: KindCopy, Path: "/src/f", Message: "denied"},
	})
	n.Notify(GroupCompletedEvent{
		baseEvent: newBaseEvent(),
		Snapshot:  Snapshot{Group: "g", Succeeded: 2, Failed: 1},
	})
	out := buf.String()
	if !strings.Contains(out, "task 7 failed: copy /src/f: denied") {
		t.Errorf("missing failure line in %q", out)
	}
	if !strings.Contains(out, "group g completed: 2 succeeded, 1 failed, 0 canceled") {
		t.Errorf("missing completion line in %q", out)
	}
}
