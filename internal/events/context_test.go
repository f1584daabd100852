package events

import (
	"context"
	"testing"
)

func TestActorRoundTrip(t *testing.T) {
	ctx := ContextWithActor(context.Background(), "alice")
	got := ActorFromContext(ctx)
	if got != "alice" {
		t.Errorf("got %q, want %q", got, "alice")
	}
}

func TestActorFromEmptyContext(t *testing.T) {
	got := ActorFromContext(context.Background())
	if got != "" {
		t.Errorf("got %q, want empty string", got)
	}
}

func TestActorEmptyStringNoOp(t *testing.T) {
	bg := context.Background()
	ctx := ContextWithActor(bg, "")
	if ctx != bg {
		t.Error("expected the same context for an empty actor")
	}
}

func TestSourceDefaultsToEngine(t *testing.T) {
	if got := SourceFromContext(context.Background()); got != SourceEngine {
		t.Errorf("got %q, want %q", got, SourceEngine)
	}
	ctx := ContextWithSource(context.Background(), SourceGateway)
	if got := SourceFromContext(ctx); got != SourceGateway {
		t.Errorf("got %q, want %q", got, SourceGateway)
	}
}
