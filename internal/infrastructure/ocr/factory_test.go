//go:build !tesseract

package ocr

import (
	"testing"
	"time"
)

func TestNewPrimaryEngineDefaultsToHTTP(t *testing.T) {
	for _, mode := range []string{"", PrimaryModeHTTP} {
		engine, err := NewPrimaryEngine(mode, "http://localhost:8866", time.Second, "eng")
		if err != nil {
			t.Fatalf("NewPrimaryEngine(%q) error = %v", mode, err)
		}
		if _, ok := engine.(*PrimaryClient); !ok {
			t.Fatalf("NewPrimaryEngine(%q) = %T, want *PrimaryClient", mode, engine)
		}
	}
}

func TestNewPrimaryEngineLocalNeedsTesseractBuild(t *testing.T) {
	if _, err := NewPrimaryEngine(PrimaryModeLocal, "", time.Second, "eng"); err == nil {
		t.Fatal("expected an error when built without tesseract support")
	}
}

func TestNewPrimaryEngineRejectsUnknownMode(t *testing.T) {
	if _, err := NewPrimaryEngine("cloud", "", time.Second, "eng"); err == nil {
		t.Fatal("expected an error for an unknown mode")
	}
}
