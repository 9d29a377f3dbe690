package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/carebridge/carelink/internal/infrastructure/redpanda"
)

type fakePublisher struct {
	topic string
	key   string
	value []byte
	err   error
}

func (p *fakePublisher) ProduceMessage(ctx context.Context, topic, key string, value []byte) error {
	if p.err != nil {
		return p.err
	}
	p.topic, p.key, p.value = topic, key, value
	return nil
}

func TestRaiseSOSPublishesEvent(t *testing.T) {
	now := time.Date(2025, 3, 10, 3, 12, 0, 0, time.UTC)
	p := storedPatient("p1", "5-9")
	store := newFakeStore(p)
	pub := &fakePublisher{}
	h := NewAlertHandler(store, pub, nil, nil)
	h.now = func() time.Time { return now }

	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, asPatient(httptest.NewRequest("POST", "/sos", strings.NewReader(`{"message":"fell in the bathroom"}`)), "p1"))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rr.Code, rr.Body.String())
	}
	var resp SOSResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AlertID == "" {
		t.Error("response is missing the alert id")
	}

	if pub.topic != redpanda.TopicAlertsSOS || pub.key != "p1" {
		t.Errorf("published to %s/%s", pub.topic, pub.key)
	}
	var ev SOSEvent
	if err := json.Unmarshal(pub.value, &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if ev.AlertID != resp.AlertID || ev.PatientName != "Asha Rao" || ev.Message != "fell in the bathroom" {
		t.Errorf("unexpected event: %+v", ev)
	}

	alerts := store.alerts["p1"]
	if !alerts.HasActiveSOS || alerts.LatestAlertID != resp.AlertID || alerts.LatestAlertType != "sos" {
		t.Errorf("alert state not updated: %+v", alerts)
	}
}

func TestRaiseSOSWithoutBody(t *testing.T) {
	p := storedPatient("p1", "5-9")
	pub := &fakePublisher{}
	h := NewAlertHandler(newFakeStore(p), pub, nil, nil)

	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, asPatient(httptest.NewRequest("POST", "/sos", nil), "p1"))

	if rr.Code != http.StatusAccepted {
		t.Errorf("bodyless SOS: status = %d, want 202", rr.Code)
	}
	if pub.topic != redpanda.TopicAlertsSOS {
		t.Error("bodyless SOS was not published")
	}
}

func TestRaiseSOSUnknownPatient(t *testing.T) {
	pub := &fakePublisher{}
	h := NewAlertHandler(newFakeStore(), pub, nil, nil)

	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, asPatient(httptest.NewRequest("POST", "/sos", nil), "ghost"))

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
	if pub.topic != "" {
		t.Error("nothing should be published for an unknown patient")
	}
}

func TestRaiseSOSPublishFailure(t *testing.T) {
	p := storedPatient("p1", "5-9")
	store := newFakeStore(p)
	h := NewAlertHandler(store, &fakePublisher{err: errors.New("broker down")}, nil, nil)

	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, asPatient(httptest.NewRequest("POST", "/sos", nil), "p1"))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
	if _, ok := store.alerts["p1"]; ok {
		t.Error("alert state must not change when the publish fails")
	}
}
