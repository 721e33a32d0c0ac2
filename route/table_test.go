package route_test

import (
	"context"
	"sync"
	"testing"

	"github.com/navkit-dev/navkit/core/navstate"
	"github.com/navkit-dev/navkit/route"
)

func testFactory(marker string) route.Factory {
	return func(ctx context.Context, st *navstate.State) any {
		return marker
	}
}

func TestTable_RegisterAndLookup(t *testing.T) {
	table := route.NewTable()
	table.Register([]route.Descriptor{
		{Path: "/home", Render: testFactory("home")},
		{Path: "/settings", Render: testFactory("settings")},
	})

	d, ok := table.Lookup("/home")
	if !ok {
		t.Fatal("Lookup(/home) = false, want true")
	}
	if d.Path != "/home" {
		t.Errorf("d.Path = %q, want %q", d.Path, "/home")
	}
	if got := d.Render(context.Background(), nil); got != "home" {
		t.Errorf("Render() = %v, want %q", got, "home")
	}

	if _, ok := table.Lookup("/missing"); ok {
		t.Error("Lookup(/missing) = true, want false")
	}
}

func TestTable_RegisterReplacesTable(t *testing.T) {
	table := route.NewTable()
	table.Register([]route.Descriptor{
		{Path: "/a", Render: testFactory("a")},
		{Path: "/b", Render: testFactory("b")},
	})
	table.Register([]route.Descriptor{
		{Path: "/c", Render: testFactory("c")},
	})

	if _, ok := table.Lookup("/a"); ok {
		t.Error("Lookup(/a) = true after re-register, want false")
	}
	if _, ok := table.Lookup("/c"); !ok {
		t.Error("Lookup(/c) = false, want true")
	}
	if table.Len() != 1 {
		t.Errorf("Len() = %d, want 1", table.Len())
	}
}

func TestTable_DuplicatePathLastWins(t *testing.T) {
	table := route.NewTable()
	table.Register([]route.Descriptor{
		{Path: "/dup", Render: testFactory("first")},
		{Path: "/dup", Render: testFactory("second")},
	})

	if table.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", table.Len())
	}

	d, ok := table.Lookup("/dup")
	if !ok {
		t.Fatal("Lookup(/dup) = false, want true")
	}
	if got := d.Render(context.Background(), nil); got != "second" {
		t.Errorf("Render() = %v, want %q", got, "second")
	}
}

func TestTable_Paths_Sorted(t *testing.T) {
	table := route.NewTable()
	table.Register([]route.Descriptor{
		{Path: "/zebra"},
		{Path: "/apple"},
		{Path: "/mango"},
	})

	want := []string{"/apple", "/mango", "/zebra"}
	got := table.Paths()
	if len(got) != len(want) {
		t.Fatalf("Paths() returned %d paths, want %d", len(got), len(want))
	}
	for i, p := range want {
		if got[i] != p {
			t.Errorf("Paths()[%d] = %q, want %q", i, got[i], p)
		}
	}
}

func TestTable_ConcurrentAccess(t *testing.T) {
	table := route.NewTable()
	table.Register([]route.Descriptor{{Path: "/home"}})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			table.Register([]route.Descriptor{{Path: "/home"}, {Path: "/other"}})
		}()
		go func() {
			defer wg.Done()
			table.Lookup("/home")
			table.Len()
		}()
	}
	wg.Wait()

	if _, ok := table.Lookup("/home"); !ok {
		t.Error("Lookup(/home) = false after concurrent access, want true")
	}
}
