package metadata

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/driftsync/driftsync/internal/syncerr"
)

func sample(path string) FileMetadata {
	return FileMetadata{
		FilePath:     path,
		Hash:         "00000000deadbeef",
		Size:         42,
		ModifiedTime: 1704096000,
		CreatedTime:  1704000000,
		SyncState:    StateSynced,
		Replicas: []ReplicaInfo{
			{ReplicaID: "laptop-1", Version: 3, ModifiedTime: 1704096000},
		},
	}
}

func TestAddGet(t *testing.T) {
	s := NewStore()
	m := sample("docs/a.txt")
	if err := s.Add(m); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, err := s.Get("docs/a.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Hash != m.Hash || got.Size != m.Size || len(got.Replicas) != 1 {
		t.Errorf("Get returned %+v, want %+v", got, m)
	}

	if err := s.Add(m); !errors.Is(err, syncerr.ErrAlreadyExists) {
		t.Errorf("second Add: got %v, want ErrAlreadyExists", err)
	}
}

func TestGetMissing(t *testing.T) {
	s := NewStore()
	if _, err := s.Get("nope"); !errors.Is(err, syncerr.ErrNotFound) {
		t.Errorf("Get missing: got %v, want ErrNotFound", err)
	}
}

func TestUpdateNeverCreates(t *testing.T) {
	s := NewStore()
	if err := s.Update(sample("ghost.txt")); !errors.Is(err, syncerr.ErrNotFound) {
		t.Errorf("Update missing: got %v, want ErrNotFound", err)
	}
	if s.Exists("ghost.txt") {
		t.Error("failed Update created a record")
	}
}

func TestUpsertAndRemove(t *testing.T) {
	s := NewStore()
	m := sample("b.txt")
	s.Upsert(m)
	m.Hash = "00000000cafebabe"
	s.Upsert(m)

	got, err := s.Get("b.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got.Hash != "00000000cafebabe" {
		t.Errorf("Upsert did not replace, hash = %s", got.Hash)
	}

	if err := s.Remove("b.txt"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove("b.txt"); !errors.Is(err, syncerr.ErrNotFound) {
		t.Errorf("double Remove: got %v, want ErrNotFound", err)
	}
}

func TestListAllIsPermutation(t *testing.T) {
	s := NewStore()
	paths := map[string]bool{}
	for i := 0; i < 10; i++ {
		p := fmt.Sprintf("dir/file-%d.txt", i)
		paths[p] = false
		if err := s.Add(sample(p)); err != nil {
			t.Fatal(err)
		}
	}

	all := s.ListAll()
	if len(all) != 10 || s.Size() != 10 {
		t.Fatalf("got %d records, Size %d, want 10", len(all), s.Size())
	}
	for _, m := range all {
		seen, ok := paths[m.FilePath]
		if !ok || seen {
			t.Errorf("unexpected or duplicate path %s", m.FilePath)
		}
		paths[m.FilePath] = true
	}
}

func TestReturnedCopiesAreIsolated(t *testing.T) {
	s := NewStore()
	if err := s.Add(sample("c.txt")); err != nil {
		t.Fatal(err)
	}

	got, _ := s.Get("c.txt")
	got.Replicas[0].Version = 99

	again, _ := s.Get("c.txt")
	if again.Replicas[0].Version != 3 {
		t.Error("mutating a returned record leaked into the store")
	}
}

func TestQuery(t *testing.T) {
	s := NewStore()
	a := sample("a.txt")
	a.SyncState = StateModified
	b := sample("b.txt")
	s.Upsert(a)
	s.Upsert(b)

	modified := s.Query(func(m FileMetadata) bool { return m.SyncState == StateModified })
	if len(modified) != 1 || modified[0].FilePath != "a.txt" {
		t.Errorf("Query returned %+v", modified)
	}
}

func TestClear(t *testing.T) {
	s := NewStore()
	s.Upsert(sample("a.txt"))
	s.Clear()
	if s.Size() != 0 {
		t.Errorf("Size after Clear = %d", s.Size())
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Upsert(sample(fmt.Sprintf("w%d/f%d", i, j)))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.ListAll()
				s.Size()
				s.Exists("w0/f0")
			}
		}()
	}
	wg.Wait()
	if s.Size() != 800 {
		t.Errorf("Size = %d, want 800", s.Size())
	}
}
