package termindex

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("  Gari (fermented Cassava), flour! ")
	want := []string{"gari", "fermented", "cassava", "flour"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tokens = %v, want %v", got, want)
	}
}

func TestQuery_OverlapOrdering(t *testing.T) {
	ix := New()
	ix.Put(1, TokenizeAll("egusi soup mix"))
	ix.Put(2, TokenizeAll("egusi seeds"))
	ix.Put(3, TokenizeAll("palm oil"))

	got := ix.Query(Tokenize("egusi soup"))
	if len(got) != 2 {
		t.Fatalf("matches = %d, want 2", len(got))
	}
	if got[0].ID != 1 || got[0].Overlap != 2 {
		t.Fatalf("first match = %+v, want id 1 overlap 2", got[0])
	}
	if got[1].ID != 2 || got[1].Overlap != 1 {
		t.Fatalf("second match = %+v, want id 2 overlap 1", got[1])
	}
}

func TestPut_ReindexDropsStaleAliases(t *testing.T) {
	ix := New()
	ix.Put(7, TokenizeAll("gari", "fermented cassava"))
	if got := ix.Query(Tokenize("cassava")); len(got) != 1 {
		t.Fatalf("expected alias hit before reindex, got %v", got)
	}

	// Reindex without the alias: the old token must be gone.
	ix.Put(7, TokenizeAll("gari"))
	if got := ix.Query(Tokenize("cassava")); len(got) != 0 {
		t.Fatalf("stale alias still indexed: %v", got)
	}
	if got := ix.Query(Tokenize("gari")); len(got) != 1 || got[0].ID != 7 {
		t.Fatalf("canonical name lost on reindex: %v", got)
	}
}

func TestRemove(t *testing.T) {
	ix := New()
	ix.Put(1, Tokenize("fufu flour"))
	ix.Remove(1)
	if got := ix.Query(Tokenize("fufu")); len(got) != 0 {
		t.Fatalf("removed entity still returned: %v", got)
	}
	if ix.Size() != 0 {
		t.Fatalf("size = %d after remove", ix.Size())
	}
}

func TestQuery_DuplicateQueryTokensCountOnce(t *testing.T) {
	ix := New()
	ix.Put(1, Tokenize("jollof rice"))
	got := ix.Query([]string{"rice", "rice", "rice"})
	if len(got) != 1 || got[0].Overlap != 1 {
		t.Fatalf("duplicate query tokens inflated overlap: %v", got)
	}
}
