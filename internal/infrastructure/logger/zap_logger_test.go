package logger

import "testing"

func TestNewLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	log, err := NewLogger("not-a-level", "json")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if !log.Core().Enabled(0) { // zapcore.InfoLevel == 0
		t.Error("expected info level to be enabled after invalid-level fallback")
	}
}

func TestNewLogger_ConsoleEncoding(t *testing.T) {
	log, err := NewLogger("debug", "console")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if log == nil {
		t.Fatal("expected non-nil logger")
	}
}
