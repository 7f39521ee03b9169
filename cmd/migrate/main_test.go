package main

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/golang-migrate/migrate/v4"
)

type fakeMigrator struct {
	upErr   error
	steps   []int
	forced  int
	version uint
	verErr  error
}

func (f *fakeMigrator) Up() error { return f.upErr }

func (f *fakeMigrator) Steps(n int) error {
	f.steps = append(f.steps, n)
	return nil
}

func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, false, f.verErr }

func (f *fakeMigrator) Force(version int) error {
	f.forced = version
	return nil
}

func TestRun(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("up without pending migrations succeeds", func(t *testing.T) {
		m := &fakeMigrator{upErr: migrate.ErrNoChange}
		if err := run(m, []string{"up"}, logger); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("up surfaces migration failures", func(t *testing.T) {
		m := &fakeMigrator{upErr: errors.New("dirty database")}
		if err := run(m, []string{"up"}, logger); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("down rolls back a single step", func(t *testing.T) {
		m := &fakeMigrator{}
		if err := run(m, []string{"down"}, logger); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(m.steps) != 1 || m.steps[0] != -1 {
			t.Errorf("expected a single -1 step, got %v", m.steps)
		}
	})

	t.Run("version on empty schema succeeds", func(t *testing.T) {
		m := &fakeMigrator{verErr: migrate.ErrNilVersion}
		if err := run(m, []string{"version"}, logger); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("force parses the version", func(t *testing.T) {
		m := &fakeMigrator{}
		if err := run(m, []string{"force", "1"}, logger); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if m.forced != 1 {
			t.Errorf("expected forced version 1, got %d", m.forced)
		}
	})

	t.Run("force rejects bad input", func(t *testing.T) {
		for _, args := range [][]string{{"force"}, {"force", "latest"}} {
			if err := run(&fakeMigrator{}, args, logger); err == nil {
				t.Errorf("expected error for %v", args)
			}
		}
	})

	t.Run("unknown command", func(t *testing.T) {
		if err := run(&fakeMigrator{}, []string{"seed"}, logger); err == nil {
			t.Error("expected error")
		}
	})
}
