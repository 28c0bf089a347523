package exitcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrSessionNotFound, "session not found")
	if err.Code != ErrSessionNotFound {
		t.Errorf("Code = %d, want %d", err.Code, ErrSessionNotFound)
	}
	if err.Message != "session not found" {
		t.Errorf("Message = %q, want %q", err.Message, "session not found")
	}
}

func TestWrapf(t *testing.T) {
	cause := errors.New("unknown flag: --bogus")
	err := Wrapf(ErrUsage, cause, "%s", "slip server start")

	if err.Code != ErrUsage {
		t.Errorf("Code = %d, want %d", err.Code, ErrUsage)
	}
	if !errors.Is(err, cause) {
		t.Error("Wrapf should preserve cause for errors.Is")
	}
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "without cause",
			err:  New(ErrSessionNotFound, "session slip-x not found"),
			want: "session slip-x not found",
		},
		{
			name: "with cause",
			err:  Wrapf(ErrUsage, errors.New("unknown flag: --x"), "slip %s", "session"),
			want: "slip session: unknown flag: --x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, Success},
		{"coded error", New(ErrSessionNotFound, "not found"), ErrSessionNotFound},
		{"wrapped coded", Wrapf(ErrTimeout, errors.New("ctx"), "timed out"), ErrTimeout},
		{"plain error", errors.New("plain"), ErrGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.want {
				t.Errorf("Code() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCode_RegisteredSentinel(t *testing.T) {
	sentinel := errors.New("no available port")
	Register(sentinel, ErrNoPort)

	wrapped := fmt.Errorf("ensuring worker: %w", fmt.Errorf("%w in range 4097-4196", sentinel))
	if got := Code(wrapped); got != ErrNoPort {
		t.Errorf("Code() = %d, want %d", got, ErrNoPort)
	}

	// An explicit *Error still wins over a registered sentinel.
	explicit := Wrapf(ErrUsage, sentinel, "bad port")
	if got := Code(explicit); got != ErrUsage {
		t.Errorf("Code() = %d, want %d", got, ErrUsage)
	}
}

func TestNewf(t *testing.T) {
	err := Newf(ErrSessionNotFound, "session %s not found on port %d", "slip-a", 4096)
	if err.Code != ErrSessionNotFound {
		t.Errorf("Code = %d, want %d", err.Code, ErrSessionNotFound)
	}
	want := "session slip-a not found on port 4096"
	if err.Message != want {
		t.Errorf("Message = %q, want %q", err.Message, want)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		wantCode int
		wantMsg  string
	}{
		{
			name:     "SessionNotFound",
			err:      SessionNotFound("ttys001"),
			wantCode: ErrSessionNotFound,
			wantMsg:  "session not found: ttys001",
		},
		{
			name:     "FileNotFound",
			err:      FileNotFound("/path/to/file"),
			wantCode: ErrFileNotFound,
			wantMsg:  "file not found: /path/to/file",
		},
		{
			name:     "Usage",
			err:      Usage("prompt required"),
			wantCode: ErrUsage,
			wantMsg:  "prompt required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", tt.err.Code, tt.wantCode)
			}
			if tt.err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", tt.err.Message, tt.wantMsg)
			}
		})
	}
}

func TestCodeWithWrappedErrors(t *testing.T) {
	// Code() extracts codes through fmt.Errorf %w chains.
	original := SessionNotFound("slip-abc")
	wrapped := fmt.Errorf("failed to attach: %w", original)
	doubleWrapped := fmt.Errorf("operation failed: %w", wrapped)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"original", original, ErrSessionNotFound},
		{"single wrapped", wrapped, ErrSessionNotFound},
		{"double wrapped", doubleWrapped, ErrSessionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.want {
				t.Errorf("Code() = %d, want %d", got, tt.want)
			}
		})
	}
}
