package fileindex

import (
	"context"
	"testing"
)

func TestHostSessionReplacesPriorContents(t *testing.T) {
	idx, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	sess, err := idx.OpenHostSession(ctx, "10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Append([]File{{Path: "/pub", Name: "old.iso", Size: 100}}); err != nil {
		t.Fatal(err)
	}
	if err := sess.Commit(); err != nil {
		t.Fatal(err)
	}

	sess2, err := idx.OpenHostSession(ctx, "10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if err := sess2.Append([]File{{Path: "/pub", Name: "new.iso", Size: 200}}); err != nil {
		t.Fatal(err)
	}
	if err := sess2.Commit(); err != nil {
		t.Fatal(err)
	}

	st, err := idx.Stats(ctx, "10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if st.FileCount != 1 || st.Size != 200 {
		t.Fatalf("Stats = %+v, want one 200-byte file (old entries should be replaced)", st)
	}
}

func TestDiscardLeavesPriorContentsUntouched(t *testing.T) {
	idx, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	sess, err := idx.OpenHostSession(ctx, "10.0.0.2")
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Append([]File{{Path: "/pub", Name: "keep.iso", Size: 50}}); err != nil {
		t.Fatal(err)
	}
	if err := sess.Commit(); err != nil {
		t.Fatal(err)
	}

	sess2, err := idx.OpenHostSession(ctx, "10.0.0.2")
	if err != nil {
		t.Fatal(err)
	}
	if err := sess2.Append([]File{{Path: "/pub", Name: "partial.iso", Size: 1}}); err != nil {
		t.Fatal(err)
	}
	if err := sess2.Discard(); err != nil {
		t.Fatal(err)
	}

	st, err := idx.Stats(ctx, "10.0.0.2")
	if err != nil {
		t.Fatal(err)
	}
	if st.FileCount != 1 || st.Size != 50 {
		t.Fatalf("Stats = %+v, want the original keep.iso entry after a discarded session", st)
	}
}

func TestSearchIsAccentFolded(t *testing.T) {
	idx, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	sess, err := idx.OpenHostSession(ctx, "10.0.0.3")
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Append([]File{{Path: "/media", Name: "café.mp3", Size: 10}}); err != nil {
		t.Fatal(err)
	}
	if err := sess.Commit(); err != nil {
		t.Fatal(err)
	}

	hits, err := idx.Search(ctx, "cafe", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Name != "café.mp3" {
		t.Fatalf("Search(\"cafe\") = %v, want to match café.mp3 via accent folding", hits)
	}
}

func TestPruneRemovesHostsNotKept(t *testing.T) {
	idx, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	for _, ip := range []string{"10.0.0.4", "10.0.0.5"} {
		sess, err := idx.OpenHostSession(ctx, ip)
		if err != nil {
			t.Fatal(err)
		}
		if err := sess.Append([]File{{Path: "/", Name: "f", Size: 1}}); err != nil {
			t.Fatal(err)
		}
		if err := sess.Commit(); err != nil {
			t.Fatal(err)
		}
	}

	if err := idx.Prune(ctx, []string{"10.0.0.4"}); err != nil {
		t.Fatal(err)
	}

	st5, err := idx.Stats(ctx, "10.0.0.5")
	if err != nil {
		t.Fatal(err)
	}
	if st5.FileCount != 0 {
		t.Fatalf("expected 10.0.0.5 to be pruned, got %+v", st5)
	}
	st4, err := idx.Stats(ctx, "10.0.0.4")
	if err != nil {
		t.Fatal(err)
	}
	if st4.FileCount != 1 {
		t.Fatalf("expected 10.0.0.4 to survive the prune, got %+v", st4)
	}
}
