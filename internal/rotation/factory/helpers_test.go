package factory

import (
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/allisson/rotator/internal/rotation/domain"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions() Options {
	return Options{
		HTTPTimeout:  2 * time.Second,
		HTTPRetryMax: 0,
		Logger:       testLogger(),
		Now:          func() time.Time { return fixedNow },
	}
}

func mustConfig(kind domain.Kind, parameters, mapping string) domain.Config {
	cfg, err := domain.DecodeConfig(kind, json.RawMessage(parameters), json.RawMessage(mapping))
	if err != nil {
		panic(err)
	}
	return cfg
}
