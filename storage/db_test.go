package storage

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()

	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	for _, key := range []string{"report/0002", "report/0001", "vault", "report/0003"} {
		if err := db.Put([]byte(key), []byte("v:"+key)); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	value, err := db.Get([]byte("vault"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(value, []byte("v:vault")) {
		t.Fatalf("unexpected value %q", value)
	}

	var keys []string
	if err := db.Iterate([]byte("report/"), func(key, _ []byte) bool {
		keys = append(keys, string(key))
		return true
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	want := []string{"report/0001", "report/0002", "report/0003"}
	if len(keys) != len(want) {
		t.Fatalf("expected %v, got %v", want, keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, keys)
		}
	}

	visited := 0
	_ = db.Iterate([]byte("report/"), func(_, _ []byte) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Fatalf("expected iteration to stop after first key, visited %d", visited)
	}

	if err := db.Delete([]byte("vault")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get([]byte("vault")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted key to be missing, got %v", err)
	}
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	buf := []byte("abc")
	if err := db.Put([]byte("k"), buf); err != nil {
		t.Fatalf("put: %v", err)
	}
	buf[0] = 'z'
	got, _ := db.Get([]byte("k"))
	if string(got) != "abc" {
		t.Fatalf("stored value aliased caller buffer: %q", got)
	}
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	defer db.Close()
	exerciseDatabase(t, db)
}
