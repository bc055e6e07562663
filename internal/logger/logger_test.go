package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetupWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	Logger{Level: "debug", Format: "json"}.SetupWriter(&buf)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	log.Debug().Str("dataset", "facilities").Msg("Dataset loaded")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if line["dataset"] != "facilities" {
		t.Errorf("dataset field: got %v", line["dataset"])
	}
	if line["message"] != "Dataset loaded" {
		t.Errorf("message field: got %v", line["message"])
	}
}

func TestSetupWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	Logger{Level: "warn", Format: "json"}.SetupWriter(&buf)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	log.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info line should be filtered at warn level, got %q", buf.String())
	}
}
