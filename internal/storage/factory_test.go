package storage

import (
	"context"
	"testing"
)

func TestNewStoreMemory(t *testing.T) {
	store, err := NewStore("memory", "")
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	if store == nil {
		t.Fatal("expected non-nil store")
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := CloseIfSupported(store); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestNewStoreUnsupported(t *testing.T) {
	_, err := NewStore("unknown", "")
	if err == nil {
		t.Fatal("expected unsupported store error")
	}
}

func TestDefaultStoreKindIsConstructible(t *testing.T) {
	store, err := NewStore(DefaultStoreKind(), t.TempDir()+"/amigame.db")
	if err != nil {
		t.Fatalf("new default store: %v", err)
	}
	t.Cleanup(func() { _ = CloseIfSupported(store) })
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
}
