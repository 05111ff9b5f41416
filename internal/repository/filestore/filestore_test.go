package filestore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestReadMissing(t *testing.T) {
	f := New(filepath.Join(t.TempDir(), "nested", "state.json"))
	data, ok, err := f.Read()
	if err != nil || ok || data != nil {
		t.Fatalf("Read() = %q, %v, %v", data, ok, err)
	}
}

func TestWriteThenRead(t *testing.T) {
	f := New(filepath.Join(t.TempDir(), "state.json"))
	if err := f.Write([]byte("v1")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Write([]byte("v2")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, ok, err := f.Read()
	if err != nil || !ok || string(data) != "v2" {
		t.Fatalf("Read() = %q, %v, %v", data, ok, err)
	}

	entries, _ := os.ReadDir(filepath.Dir(f.Path()))
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	var wg sync.WaitGroup
	for _, v := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := New(path).Write([]byte(v)); err != nil {
				t.Errorf("Write: %v", err)
			}
		}()
	}
	wg.Wait()
	data, _, err := New(path).Read()
	if err != nil || len(data) != 1 {
		t.Fatalf("Read() = %q, %v", data, err)
	}
}
