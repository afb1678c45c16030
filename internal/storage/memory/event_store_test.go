package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage"
)

func TestEventStore_InsertAndGet(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	e := &domain.MatchEvent{
		EventID:     "abc123",
		League:      "COPA_EXPRESS",
		HomeTeam:    "FLA",
		AwayTeam:    "PAL",
		KickoffMs:   1704067200000,
		Odds:        map[string]float64{domain.MarketHome: 2.10, domain.MarketOver25: 1.85},
		Results:     map[string]bool{domain.MarketHome: true, domain.MarketOver25: false},
		CreatedAtMs: 1704067200000,
	}

	// Insert
	err := store.Insert(ctx, e)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Get
	got, err := store.GetByID(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if got.EventID != e.EventID {
		t.Errorf("EventID mismatch: got %s, want %s", got.EventID, e.EventID)
	}
	if got.League != e.League {
		t.Errorf("League mismatch: got %s, want %s", got.League, e.League)
	}
	if got.Odds[domain.MarketHome] != 2.10 {
		t.Errorf("Home odds mismatch: got %f, want 2.10", got.Odds[domain.MarketHome])
	}
	if won, ok := got.Result(domain.MarketHome); !ok || !won {
		t.Errorf("Home result mismatch: got (%v, %v), want (true, true)", won, ok)
	}
}

func TestEventStore_DuplicateKey(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	e := &domain.MatchEvent{
		EventID:   "abc123",
		League:    "COPA_EXPRESS",
		HomeTeam:  "FLA",
		AwayTeam:  "PAL",
		KickoffMs: 1704067200000,
	}

	// First insert
	err := store.Insert(ctx, e)
	if err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	// Second insert should fail
	err = store.Insert(ctx, e)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestEventStore_NotFound(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	_, err := store.GetByID(ctx, "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestEventStore_InsertBulk(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	events := []*domain.MatchEvent{
		{EventID: "e1", League: "COPA_EXPRESS", HomeTeam: "FLA", AwayTeam: "PAL", KickoffMs: 1000},
		{EventID: "e2", League: "COPA_EXPRESS", HomeTeam: "COR", AwayTeam: "SAN", KickoffMs: 2000},
		{EventID: "e3", League: "COPA_EXPRESS", HomeTeam: "GRE", AwayTeam: "INT", KickoffMs: 3000},
	}

	err := store.InsertBulk(ctx, events)
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	count, _ := store.CountByTimeRange(ctx, 0, 10000)
	if count != 3 {
		t.Errorf("Expected 3 events, got %d", count)
	}
}

func TestEventStore_InsertBulkPartialDuplicate(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	// Insert first
	first := &domain.MatchEvent{EventID: "e1", League: "COPA_EXPRESS", HomeTeam: "FLA", AwayTeam: "PAL", KickoffMs: 1000}
	if err := store.Insert(ctx, first); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	// Bulk insert with duplicate
	events := []*domain.MatchEvent{
		{EventID: "e2", League: "COPA_EXPRESS", HomeTeam: "COR", AwayTeam: "SAN", KickoffMs: 2000}, // new
		{EventID: "e1", League: "COPA_EXPRESS", HomeTeam: "FLA", AwayTeam: "PAL", KickoffMs: 1000}, // duplicate
	}

	err := store.InsertBulk(ctx, events)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Verify no partial insert
	count, _ := store.CountByTimeRange(ctx, 0, 10000)
	if count != 1 {
		t.Errorf("Expected 1 event (rollback), got %d", count)
	}
}

func TestEventStore_InsertBulkIntraBatchDuplicate(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	// Same event_id twice within one batch
	events := []*domain.MatchEvent{
		{EventID: "e1", League: "COPA_EXPRESS", HomeTeam: "FLA", AwayTeam: "PAL", KickoffMs: 1000},
		{EventID: "e1", League: "COPA_EXPRESS", HomeTeam: "FLA", AwayTeam: "PAL", KickoffMs: 1000},
	}

	err := store.InsertBulk(ctx, events)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	count, _ := store.CountByTimeRange(ctx, 0, 10000)
	if count != 0 {
		t.Errorf("Expected 0 events (rollback), got %d", count)
	}
}

func TestEventStore_GetByTimeRange(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	events := []*domain.MatchEvent{
		{EventID: "e1", League: "COPA_EXPRESS", HomeTeam: "FLA", AwayTeam: "PAL", KickoffMs: 1000},
		{EventID: "e2", League: "COPA_EXPRESS", HomeTeam: "COR", AwayTeam: "SAN", KickoffMs: 2000},
		{EventID: "e3", League: "COPA_EXPRESS", HomeTeam: "GRE", AwayTeam: "INT", KickoffMs: 3000},
		{EventID: "e4", League: "COPA_EXPRESS", HomeTeam: "BOT", AwayTeam: "VAS", KickoffMs: 4000},
	}

	for _, e := range events {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	// Query range [2000, 3000]
	result, err := store.GetByTimeRange(ctx, 2000, 3000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}

	if len(result) != 2 {
		t.Errorf("Expected 2 results, got %d", len(result))
	}

	// Verify order
	if result[0].EventID != "e2" {
		t.Errorf("First result should be e2, got %s", result[0].EventID)
	}
	if result[1].EventID != "e3" {
		t.Errorf("Second result should be e3, got %s", result[1].EventID)
	}
}

func TestEventStore_GetByTimeRangeOrdersTies(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	// Same kickoff, tie broken by event_id
	events := []*domain.MatchEvent{
		{EventID: "zz", League: "COPA_EXPRESS", HomeTeam: "FLA", AwayTeam: "PAL", KickoffMs: 1000},
		{EventID: "aa", League: "COPA_EXPRESS", HomeTeam: "COR", AwayTeam: "SAN", KickoffMs: 1000},
	}

	for _, e := range events {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, err := store.GetByTimeRange(ctx, 0, 2000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(result))
	}
	if result[0].EventID != "aa" || result[1].EventID != "zz" {
		t.Errorf("Expected order [aa, zz], got [%s, %s]", result[0].EventID, result[1].EventID)
	}
}

func TestEventStore_GetByLeague(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	events := []*domain.MatchEvent{
		{EventID: "e1", League: "COPA_EXPRESS", HomeTeam: "FLA", AwayTeam: "PAL", KickoffMs: 1000},
		{EventID: "e2", League: "SUPER_LIGA", HomeTeam: "COR", AwayTeam: "SAN", KickoffMs: 2000},
		{EventID: "e3", League: "COPA_EXPRESS", HomeTeam: "GRE", AwayTeam: "INT", KickoffMs: 3000},
	}

	for _, e := range events {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, err := store.GetByLeague(ctx, "COPA_EXPRESS", 0, 10000)
	if err != nil {
		t.Fatalf("GetByLeague failed: %v", err)
	}

	if len(result) != 2 {
		t.Errorf("Expected 2 COPA_EXPRESS results, got %d", len(result))
	}
}

func TestEventStore_DefensiveCopy(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	e := &domain.MatchEvent{
		EventID:   "e1",
		League:    "COPA_EXPRESS",
		HomeTeam:  "FLA",
		AwayTeam:  "PAL",
		KickoffMs: 1000,
		Odds:      map[string]float64{domain.MarketHome: 2.10},
	}
	if err := store.Insert(ctx, e); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Mutating the caller's copy must not affect the store
	e.Odds[domain.MarketHome] = 99.0

	got, err := store.GetByID(ctx, "e1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Odds[domain.MarketHome] != 2.10 {
		t.Errorf("Store leaked caller mutation: got %f, want 2.10", got.Odds[domain.MarketHome])
	}

	// Mutating a read result must not affect the store either
	got.Odds[domain.MarketHome] = 50.0

	again, err := store.GetByID(ctx, "e1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if again.Odds[domain.MarketHome] != 2.10 {
		t.Errorf("Store leaked reader mutation: got %f, want 2.10", again.Odds[domain.MarketHome])
	}
}

func TestEventStore_ConcurrentInserts(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	numGoroutines := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			e := &domain.MatchEvent{
				EventID:   fmt.Sprintf("event-%d", id),
				League:    "COPA_EXPRESS",
				HomeTeam:  "FLA",
				AwayTeam:  "PAL",
				KickoffMs: int64(id * 1000),
			}
			_ = store.Insert(ctx, e)
		}(i)
	}

	wg.Wait()

	count, _ := store.CountByTimeRange(ctx, 0, int64(numGoroutines*1000))
	if count != int64(numGoroutines) {
		t.Errorf("Expected %d events, got %d", numGoroutines, count)
	}
}

func TestEventStore_InvalidInput(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	// Nil input
	err := store.Insert(ctx, nil)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}

	// Empty event_id
	err = store.Insert(ctx, &domain.MatchEvent{EventID: ""})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty ID, got %v", err)
	}
}
