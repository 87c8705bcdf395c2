package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/gathering-portal/backend/internal/models"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublisherKeysBySubject(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w, nil)
	fixed := time.Date(2024, 3, 3, 1, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	rec := &models.AttendanceRecord{ID: uuid.New(), SubjectID: uuid.New(), Category: models.CategoryGeneral, Status: models.StatusPresent}
	if err := p.Publish(context.Background(), rec); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != rec.SubjectID.String() {
		t.Errorf("key = %s, want subject id", w.msgs[0].Key)
	}
	var ev CheckInEvent
	if err := json.Unmarshal(w.msgs[0].Value, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Record.ID != rec.ID || ev.Type != "attendance.checked_in" || !ev.SentAt.Equal(fixed) {
		t.Errorf("unexpected event %+v", ev)
	}
}

type stubPublisher struct {
	calls int
	err   error
}

func (s *stubPublisher) Publish(context.Context, *models.AttendanceRecord) error {
	s.calls++
	return s.err
}

func TestMultiPublishesToAll(t *testing.T) {
	boom := errors.New("broker down")
	a, b := &stubPublisher{err: boom}, &stubPublisher{}
	err := Multi{a, nil, b}.Publish(context.Background(), &models.AttendanceRecord{})
	if !errors.Is(err, boom) {
		t.Errorf("expected joined error, got %v", err)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("every publisher should be called: %d, %d", a.calls, b.calls)
	}
}
