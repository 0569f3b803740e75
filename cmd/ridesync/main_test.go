package main

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type fakeCoordinator struct {
	restores int
	err      error
}

func (f *fakeCoordinator) Restore(context.Context) error {
	f.restores++
	return f.err
}

func (f *fakeCoordinator) Shutdown(context.Context) {}

func TestRestoreRoleRunsWithoutValidSession(t *testing.T) {
	cases := []struct {
		name     string
		signedIn bool
		err      error
		wantWarn bool
	}{
		{"signed in", true, nil, false},
		{"expired session", false, nil, false},
		{"restore fails", false, errors.New("store down"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			base, hook := test.NewNullLogger()
			coord := &fakeCoordinator{err: tc.err}
			restoreRole(context.Background(), coord, tc.signedIn, logrus.NewEntry(base))
			if coord.restores != 1 {
				t.Fatalf("expected one restore, got %d", coord.restores)
			}
			warned := false
			for _, e := range hook.AllEntries() {
				if e.Level == logrus.WarnLevel {
					warned = true
				}
			}
			if warned != tc.wantWarn {
				t.Errorf("warn logged = %v, want %v", warned, tc.wantWarn)
			}
		})
	}
}
