package archive

import (
	"context"
	"fmt"
	"testing"
)

func TestInMemoryStoreSaveAndRecent(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		err := s.SaveTurn(ctx, TurnRecord{
			ConversationID: "c1",
			Role:           "user",
			Content:        fmt.Sprintf("q%d", i),
		})
		if err != nil {
			t.Fatalf("SaveTurn() error = %v", err)
		}
	}

	turns, err := s.RecentTurns(ctx, "c1", 2)
	if err != nil {
		t.Fatalf("RecentTurns() error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d, want 2", len(turns))
	}
	if turns[0].Content != "q2" || turns[1].Content != "q3" {
		t.Fatalf("unexpected window: %q, %q", turns[0].Content, turns[1].Content)
	}
	if turns[0].ID == "" || turns[0].CreatedAt.IsZero() {
		t.Fatalf("missing generated fields: %+v", turns[0])
	}
}

func TestInMemoryStorePrunesBeyondCap(t *testing.T) {
	s := NewInMemoryStoreWithCap(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := s.SaveTurn(ctx, TurnRecord{
			ConversationID: "c1",
			Role:           "user",
			Content:        fmt.Sprintf("q%d", i),
		})
		if err != nil {
			t.Fatalf("SaveTurn() error = %v", err)
		}
	}

	turns, err := s.RecentTurns(ctx, "c1", 10)
	if err != nil {
		t.Fatalf("RecentTurns() error = %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("len(turns) = %d, want cap of 3", len(turns))
	}
	for i, want := range []string{"q2", "q3", "q4"} {
		if turns[i].Content != want {
			t.Fatalf("turns[%d].Content = %q, want %q", i, turns[i].Content, want)
		}
	}
}

func TestInMemoryStoreIsolatesConversations(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	_ = s.SaveTurn(ctx, TurnRecord{ConversationID: "c1", Role: "user", Content: "q"})
	turns, err := s.RecentTurns(ctx, "c2", 10)
	if err != nil {
		t.Fatalf("RecentTurns() error = %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("len(turns) = %d, want 0 for other conversation", len(turns))
	}
}
