package snapshot

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/efebarandurmaz/lineage/internal/ir"
)

func testBlock(source string) *Block {
	return &Block{
		Key:   Key("COMMON_SETTINGS", "OBSOLETE_SETTINGS", source),
		Macro: "COMMON_SETTINGS",
		Found: true,
		Declarations: []ir.Declaration{
			{Name: "max_threads", Type: "UInt64", Default: "0", Description: "threads", Flags: "0"},
		},
		CreatedAt: time.Now(),
	}
}

func TestKey(t *testing.T) {
	a := Key("M", "T", "source")
	if a != Key("M", "T", "source") {
		t.Error("key is not deterministic")
	}
	if a == Key("M", "", "source") || a == Key("N", "T", "source") || a == Key("M", "T", "other") {
		t.Error("key ignores one of its inputs")
	}
	if Key("AB", "C", "") == Key("A", "BC", "") {
		t.Error("key fields are not separated")
	}
	if len(a) != 64 {
		t.Errorf("expected 64-char hex key, got %d", len(a))
	}
}

func TestStore_PutGet(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()
	b := testBlock("v1")

	if _, ok, err := store.Get(ctx, b.Key); ok || err != nil {
		t.Fatalf("Get before Put = %v, %v", ok, err)
	}
	if err := store.Put(ctx, b); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(ctx, b); err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if n := len(store.List()); n != 1 {
		t.Errorf("expected 1 indexed block after duplicate put, got %d", n)
	}

	got, ok, err := store.Get(ctx, b.Key)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if len(got.Declarations) != 1 || got.Declarations[0].Name != "max_threads" {
		t.Errorf("declarations = %+v", got.Declarations)
	}

	reopened, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(reopened.List()); n != 1 {
		t.Errorf("reopened store lists %d blocks", n)
	}
	if _, ok, _ := reopened.Get(ctx, b.Key); !ok {
		t.Error("block missing after reopen")
	}
}

func TestStore_RejectsShortKey(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Put(context.Background(), &Block{Key: "ab"}); err == nil {
		t.Error("expected error for short key")
	}
}

type countingCache struct {
	Cache
	gets int
}

func (c *countingCache) Get(ctx context.Context, key string) (*Block, bool, error) {
	c.gets++
	return c.Cache.Get(ctx, key)
}

func TestMemo_PromotesBackingHits(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	b := testBlock("v2")
	if err := store.Put(ctx, b); err != nil {
		t.Fatal(err)
	}

	backing := &countingCache{Cache: store}
	memo, err := NewMemo(8, backing)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, ok, err := memo.Get(ctx, b.Key); !ok || err != nil {
			t.Fatalf("Get #%d = %v, %v", i, ok, err)
		}
	}
	if backing.gets != 1 {
		t.Errorf("backing cache consulted %d times, want 1", backing.gets)
	}
	if memo.Len() != 1 {
		t.Errorf("memo holds %d blocks", memo.Len())
	}
}

func TestMemo_WithoutBacking(t *testing.T) {
	memo, err := NewMemo(1, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	a, b := testBlock("a"), testBlock("b")
	if err := memo.Put(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := memo.Put(ctx, b); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := memo.Get(ctx, a.Key); ok {
		t.Error("expected eviction of the older block")
	}
	if _, ok, _ := memo.Get(ctx, b.Key); !ok {
		t.Error("expected newest block to be held")
	}
	if _, err := NewMemo(0, nil); err == nil {
		t.Error("expected error for zero size")
	}
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("LINEAGE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("LINEAGE_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	cache, err := NewRedisCache(ctx, url, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	defer cache.Close()

	b := testBlock(time.Now().String())
	if _, ok, err := cache.Get(ctx, b.Key); ok || err != nil {
		t.Fatalf("Get before Put = %v, %v", ok, err)
	}
	if err := cache.Put(ctx, b); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := cache.Get(ctx, b.Key)
	if err != nil || !ok || got.Macro != b.Macro {
		t.Fatalf("Get = %+v, %v, %v", got, ok, err)
	}
}

func TestRedisCache_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	cache := NewRedisCacheFromClient(client, time.Minute)
	defer cache.Close()

	ctx := context.Background()
	if err := cache.Ping(ctx); err == nil {
		t.Error("expected ping error")
	}
	if _, ok, err := cache.Get(ctx, "abc"); ok || err == nil {
		t.Errorf("Get = %v, %v; want miss with error", ok, err)
	}
	if err := cache.Put(ctx, testBlock("x")); err == nil {
		t.Error("expected put error")
	}
}

func TestNewRedisCache_BadURL(t *testing.T) {
	if _, err := NewRedisCache(context.Background(), "not-a-url", 0); err == nil {
		t.Error("expected error for malformed URL")
	}
}

func diffDocument() *ir.Document {
	doc := ir.NewDocument([]string{"r1", "r2"})
	var added, removed, changed, same ir.Setting
	added.Name = "added"
	added.Versions.Set("r2", ir.RevisionState{Default: "1", Tier: ir.TierBeta})
	removed.Name = "removed"
	removed.Versions.Set("r1", ir.RevisionState{Default: "1", Tier: ir.TierProduction})
	changed.Name = "changed"
	changed.Versions.Set("r1", ir.RevisionState{Default: "0", Tier: ir.TierExperimental})
	changed.Versions.Set("r2", ir.RevisionState{Default: "8", Tier: ir.TierProduction, Important: true, ChangedFromPrev: true})
	same.Name = "same"
	same.Versions.Set("r1", ir.RevisionState{Default: "x", Tier: ir.TierProduction})
	same.Versions.Set("r2", ir.RevisionState{Default: "x", Tier: ir.TierProduction})
	doc.Add(&ir.Registry{Kind: "settings", Settings: []*ir.Setting{&added, &changed, &removed, &same}})
	return doc
}

func TestDiff(t *testing.T) {
	d, err := Diff(diffDocument(), "settings", "r1", "r2")
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(d.Settings) != 3 {
		t.Fatalf("expected 3 changed settings, got %+v", d.Settings)
	}
	byName := map[string]SettingDiff{}
	for _, s := range d.Settings {
		byName[s.Name] = s
	}
	if byName["added"].Type != DiffAdded || byName["removed"].Type != DiffRemoved {
		t.Errorf("added/removed = %+v / %+v", byName["added"], byName["removed"])
	}
	c := byName["changed"]
	if c.Type != DiffModified || !c.DefaultChanged || !c.TierChanged || !c.ImportanceChanged {
		t.Errorf("changed = %+v", c)
	}
	want := DiffSummary{Added: 1, Removed: 1, DefaultChanged: 1, TierChanged: 1, ImportanceChanged: 1}
	if d.Summary != want {
		t.Errorf("summary = %+v, want %+v", d.Summary, want)
	}
}

func TestDiff_Errors(t *testing.T) {
	doc := diffDocument()
	if _, err := Diff(doc, "settings", "r1", "r9"); !errors.Is(err, ErrUnknownRevision) {
		t.Errorf("unknown revision err = %v", err)
	}
	if _, err := Diff(doc, "format_settings", "r1", "r2"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
