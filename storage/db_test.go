package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()

	key := []byte("order:1")
	if _, err := db.Get(key); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if ok, err := db.Has(key); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := db.Put(key, []byte("v1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, err := db.Get(key)
	if err != nil || string(value) != "v1" {
		t.Fatalf("get: %q, %v", value, err)
	}
	if ok, err := db.Has(key); err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}

	if err := db.Put(key, []byte("v2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	value, _ = db.Get(key)
	if string(value) != "v2" {
		t.Fatalf("expected overwrite, got %q", value)
	}
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	exerciseDatabase(t, db)

	// Stored values are copies; mutating the caller's slice changes nothing.
	value := []byte("mutable")
	if err := db.Put([]byte("k"), value); err != nil {
		t.Fatalf("put: %v", err)
	}
	value[0] = 'X'
	stored, _ := db.Get([]byte("k"))
	if string(stored) != "mutable" {
		t.Fatalf("stored value aliases caller slice: %q", stored)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "leveldb"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestBoltDB(t *testing.T) {
	db, err := NewBoltDB(filepath.Join(t.TempDir(), "bazaar.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	db, err := Open("leveldb", filepath.Join(dir, "ldb"))
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	db.Close()

	db, err = Open("bolt", filepath.Join(dir, "bolt.db"))
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	db.Close()

	if _, err := Open("postgres", dir); err == nil {
		t.Fatal("expected unknown backend rejection")
	}
}
