package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Tensaey-sol/tag-bot/internal/domain"
	"github.com/Tensaey-sol/tag-bot/internal/repo"
)

func TestMembershipService_ConcurrentOptInIsAtomic(t *testing.T) {
	db, err := repo.Open("sqlite", filepath.Join(t.TempDir(), "concurrent.db"), "")
	if err != nil {
		t.Fatalf("repo.Open: %v", err)
	}
	store := repo.NewGormStore(db)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	svc := NewMembershipService(store, 5)
	ctx := context.Background()

	const workers = 20
	var (
		wg                    sync.WaitGroup
		mu                    sync.Mutex
		added, already, other int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(chatID int64) {
			defer wg.Done()
			err := svc.OptIn(ctx, chatID, domain.Member{UserID: 7, Handle: "alice", DisplayName: "Alice"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				added++
			case errors.Is(err, domain.ErrAlreadyPresent):
				already++
			default:
				other++
				t.Errorf("OptIn chat %d: %v", chatID, err)
			}
		}(int64(i%2 + 1))
	}
	wg.Wait()

	if added != 2 || already != workers-2 || other != 0 {
		t.Fatalf("added=%d already=%d other=%d; want 2/%d/0", added, already, other, workers-2)
	}
	for _, chatID := range []int64{1, 2} {
		cm, err := svc.GetOrCreate(ctx, chatID)
		if err != nil {
			t.Fatalf("GetOrCreate %d: %v", chatID, err)
		}
		if len(cm.WithHandle) != 1 || len(cm.WithoutHandle) != 0 || cm.WithHandle[0].UserID != 7 {
			t.Fatalf("chat %d members: %+v", chatID, cm)
		}
	}
}
