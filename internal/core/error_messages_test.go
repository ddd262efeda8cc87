package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/JonMunkholm/csvclean/internal/ingest"
	"github.com/JonMunkholm/csvclean/internal/rules"
	"github.com/JonMunkholm/csvclean/internal/schema"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "nil error returns empty",
			err:      nil,
			wantCode: "",
		},
		{
			name:     "rules parse error",
			err:      &schema.ParseError{Source: "rules.json", Err: errors.New("unexpected EOF")},
			wantCode: "CFG001",
		},
		{
			name:     "wrapped reference error",
			err:      fmt.Errorf("load: %w", errors.Join(&schema.ReferenceError{File: "a.csv", Reason: "bad"})),
			wantCode: "CFG002",
		},
		{
			name:     "missing rules file",
			err:      errors.New("open rules file /etc/rules.json: no such file"),
			wantCode: "CFG003",
		},
		{
			name:     "registration error",
			err:      &rules.RegistrationError{Kind: rules.KindValidation, Name: "notNull", Reason: "registry is frozen"},
			wantCode: "RULE001",
		},
		{
			name:     "unknown rule",
			err:      fmt.Errorf("column %q: %w", "age", &rules.UnknownRuleError{Kind: rules.KindStandardisation, Name: "toMoney"}),
			wantCode: "RULE002",
		},
		{
			name:     "source not found",
			err:      &ingest.SourceError{Path: "x.csv", Op: "open", Err: fs.ErrNotExist},
			wantCode: "FILE002",
		},
		{
			name:     "unsupported encoding",
			err:      &ingest.SourceError{Path: "x.csv", Op: "decode", Err: errors.New("unsupported encoding \"ebcdic\"")},
			wantCode: "FILE003",
		},
		{
			name:     "source read failure",
			err:      &ingest.SourceError{Path: "x.csv", Op: "read", Err: errors.New("unexpected EOF")},
			wantCode: "FILE005",
		},
		{
			name:     "file too large",
			err:      errors.New("file too large: 200MB exceeds limit"),
			wantCode: "FILE001",
		},
		{
			name:     "no file provided",
			err:      errors.New("no file provided"),
			wantCode: "FILE004",
		},
		{
			name:     "sink failure",
			err:      errors.New("errors.jsonl: sink write failed: disk full"),
			wantCode: "SINK001",
		},
		{
			name:     "incomplete run",
			err:      errors.New("incomplete run"),
			wantCode: "RUN001",
		},
		{
			name:     "limiter full",
			err:      fmt.Errorf("upload: %w", ErrTooManyRuns),
			wantCode: "RUN002",
		},
		{
			name:     "cancelled",
			err:      fmt.Errorf("run: %w", context.Canceled),
			wantCode: "RUN003",
		},
		{
			name:     "deadline",
			err:      context.DeadlineExceeded,
			wantCode: "RUN004",
		},
		{
			name:     "no config",
			err:      errors.New(`no config for file "x.csv"`),
			wantCode: "CFG004",
		},
		{
			name:     "run not found",
			err:      fmt.Errorf("get run: %w", errors.New("run not found")),
			wantCode: "RUN005",
		},
		{
			name:     "case insensitive matching",
			err:      errors.New("SINK WRITE FAILED"),
			wantCode: "SINK001",
		},
		{
			name:     "unknown error returns default",
			err:      errors.New("some random internal error"),
			wantCode: "ERR000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.err != nil && got.Message == "" {
				t.Error("MapError() returned empty message")
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrTooManyRuns)

	expected := "System is busy processing other runs (Code: RUN002). Please wait a moment and try again"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error is not user facing",
			err:  nil,
			want: false,
		},
		{
			name: "known error is user facing",
			err:  errors.New("file too large"),
			want: true,
		},
		{
			name: "unknown error is not user facing",
			err:  errors.New("random internal error xyz"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsUserFacing(tt.err)
			if got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := &schema.ParseError{Source: "rules.yaml", Err: errors.New("bad indent")}
		userErr := NewUserError(techErr)

		if userErr.Error() != "The rules document cannot be parsed" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, techErr) {
			t.Error("Unwrap() should return original error")
		}
	})
	t.Run("keeps an existing user message", func(t *testing.T) {
		custom := &UserError{
			UserMessage: UserMessage{Message: "Upload window closed", Code: "RUN002"},
			Err:         errors.New("maintenance"),
		}
		got := NewUserError(fmt.Errorf("create run: %w", custom))
		if got != custom {
			t.Errorf("NewUserError() = %+v, want the wrapped UserError", got)
		}
	})
}
