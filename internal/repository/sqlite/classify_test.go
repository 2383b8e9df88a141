package sqlite

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/pkraev/plantbot/internal/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"busy", errors.New("SQLITE_BUSY: database is locked (5)"), domain.ErrTxConflict},
		{"locked", errors.New("database is locked"), domain.ErrTxConflict},
		{"bad conn", driver.ErrBadConn, domain.ErrConnectionLost},
		{"wrapped bad conn", fmt.Errorf("exec: %w", driver.ErrBadConn), domain.ErrConnectionLost},
		{"already classified", domain.ErrPoolExhausted, domain.ErrPoolExhausted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.in)
			if tc.want == nil {
				if got != nil {
					t.Fatalf("classify(nil) = %v", got)
				}
				return
			}
			if !errors.Is(got, tc.want) {
				t.Fatalf("classify(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}

	// Application errors pass through untouched so errors.Is checks on
	// domain sentinels still work at the caller.
	appErr := domain.ErrNotFound
	if got := classify(appErr); got != appErr {
		t.Fatalf("expected passthrough, got %v", got)
	}
}
