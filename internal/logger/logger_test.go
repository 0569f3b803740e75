package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"

	"ridesync/internal/config"
)

func TestNewJSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(config.LogConfig{Level: "debug", Format: "json"}, &buf)
	if log.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}
	Component(log, "driver").WithField("trip_id", "t1").Info("accepted")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if line["component"] != "driver" || line["trip_id"] != "t1" || line["msg"] != "accepted" {
		t.Fatalf("unexpected log line: %v", line)
	}
}

func TestNewUnknownLevelFallsBackToInfo(t *testing.T) {
	log := NewWithOutput(config.LogConfig{Level: "chatty"}, &bytes.Buffer{})
	if log.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info level, got %s", log.GetLevel())
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatal("expected non-nil entry")
	}
}
