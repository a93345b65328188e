package executor

import (
	"testing"

	"github.com/h3ndrk/roomhost/internal/dockerengine/dockerenginetest"
)

func TestNewBuildsEachKnownVariant(t *testing.T) {
	engine := dockerenginetest.New()
	send := (&recordingSender{}).Sender()

	cases := map[string]any{
		"docker.once":     &Once{},
		"docker.prologue": &Prologue{},
		"docker.epilogue": &Epilogue{},
		"docker.always":   &Always{},
	}
	for typ, want := range cases {
		got, err := New(engine, Config{Type: typ}, "room-1", "exec-1", send, testLogger())
		if err != nil {
			t.Fatalf("New(%q) error = %v, want nil", typ, err)
		}
		if gotType, wantType := typeName(got), typeName(want); gotType != wantType {
			t.Errorf("New(%q) = %s, want %s", typ, gotType, wantType)
		}
	}
}

func TestNewRejectsUnknownType(t *testing.T) {
	engine := dockerenginetest.New()
	send := (&recordingSender{}).Sender()
	if _, err := New(engine, Config{Type: "docker.nonexistent"}, "room-1", "exec-1", send, testLogger()); err == nil {
		t.Fatal("New() = nil error, want an error for an unknown type")
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *Once:
		return "Once"
	case *Prologue:
		return "Prologue"
	case *Epilogue:
		return "Epilogue"
	case *Always:
		return "Always"
	default:
		return "unknown"
	}
}
