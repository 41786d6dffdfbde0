package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	histerrors "github.com/stormalone/reedline/pkg/errors"
)

type shellInfo struct {
	Shell string `json:"shell"`
	Pid   int    `json:"pid"`
}

type unencodable struct {
	C chan int
}

func newMemoryStore[T any](t *testing.T) *SQLiteBacked[T] {
	t.Helper()
	h, err := NewInMemory[T]()
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func saveLines(t *testing.T, h *SQLiteBacked[Anything], lines ...string) []ItemID {
	t.Helper()
	ids := make([]ItemID, 0, len(lines))
	for _, line := range lines {
		saved, err := h.Save(context.Background(), FromCommandLine(line))
		require.NoError(t, err)
		require.NotNil(t, saved.ID)
		ids = append(ids, *saved.ID)
	}
	return ids
}

func commandLines[T any](items []Item[T]) []string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = item.CommandLine
	}
	return lines
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := newMemoryStore[shellInfo](t)

	ts := time.UnixMilli(1_700_000_000_123).UTC()
	item := Item[shellInfo]{
		StartTimestamp: &ts,
		CommandLine:    "cargo build --release",
		SessionID:      Ptr(newSessionID(3)),
		Hostname:       Ptr("devbox"),
		Cwd:            Ptr("/home/me/src"),
		Duration:       Ptr(1500 * time.Millisecond),
		ExitStatus:     Ptr[int64](2),
		MoreInfo:       &shellInfo{Shell: "zsh", Pid: 4242},
	}

	saved, err := h.Save(ctx, item)
	require.NoError(t, err)
	require.NotNil(t, saved.ID)

	loaded, err := h.Load(ctx, *saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

func TestSaveAssignsIncreasingIDs(t *testing.T) {
	ctx := context.Background()
	h := newMemoryStore[Anything](t)

	ids := saveLines(t, h, "a", "b")
	require.NoError(t, h.Delete(ctx, ids[1]))
	ids = append(ids, saveLines(t, h, "c")...)

	assert.Less(t, ids[0].v, ids[1].v)
	assert.Less(t, ids[1].v, ids[2].v, "deleted ids must not be reused")
}

func TestSaveWithIDReplacesItem(t *testing.T) {
	ctx := context.Background()
	h := newMemoryStore[Anything](t)

	saved, err := h.Save(ctx, Item[Anything]{CommandLine: "ls", Hostname: Ptr("a"), ExitStatus: Ptr[int64](1)})
	require.NoError(t, err)

	replacement := FromCommandLine("ls -la")
	replacement.ID = saved.ID
	_, err = h.Save(ctx, replacement)
	require.NoError(t, err)

	loaded, err := h.Load(ctx, *saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "ls -la", loaded.CommandLine)
	assert.Nil(t, loaded.Hostname, "replacing an item overwrites every field")
	assert.Nil(t, loaded.ExitStatus)

	n, err := h.Count(ctx, Everything(Forward))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestLoadMissing(t *testing.T) {
	h := newMemoryStore[Anything](t)

	_, err := h.Load(context.Background(), newItemID(99))
	require.Error(t, err)
	assert.True(t, histerrors.IsNotFound(err))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	h := newMemoryStore[Anything](t)
	ids := saveLines(t, h, "one", "two")

	require.NoError(t, h.Delete(ctx, ids[0]))

	_, err := h.Load(ctx, ids[0])
	assert.True(t, histerrors.IsNotFound(err))

	before, err := h.Count(ctx, Everything(Forward))
	require.NoError(t, err)

	err = h.Delete(ctx, ids[0])
	assert.True(t, histerrors.IsNotFound(err), "deleting twice reports not found")

	after, err := h.Count(ctx, Everything(Forward))
	require.NoError(t, err)
	assert.Equal(t, before, after, "a failed delete removes nothing")

	items, err := h.Search(ctx, Everything(Forward))
	require.NoError(t, err)
	assert.Equal(t, []string{"two"}, commandLines(items))
}

func TestSearchDirectionAndLimit(t *testing.T) {
	ctx := context.Background()
	h := newMemoryStore[Anything](t)
	saveLines(t, h, "one", "two", "three", "four")

	forward, err := h.Search(ctx, Everything(Forward))
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three", "four"}, commandLines(forward))

	backward, err := h.Search(ctx, Everything(Backward))
	require.NoError(t, err)
	assert.Equal(t, []string{"four", "three", "two", "one"}, commandLines(backward))

	limited := Everything(Backward)
	limited.Limit = Ptr[int64](2)
	items, err := h.Search(ctx, limited)
	require.NoError(t, err)
	assert.Equal(t, []string{"four", "three"}, commandLines(items))

	n, err := h.Count(ctx, limited)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n, "count ignores the limit")
}

func TestSearchEmptyStore(t *testing.T) {
	ctx := context.Background()
	h := newMemoryStore[Anything](t)

	items, err := h.Search(ctx, Everything(Backward))
	require.NoError(t, err)
	assert.Empty(t, items)

	n, err := h.Count(ctx, Everything(Forward))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSearchIDBounds(t *testing.T) {
	ctx := context.Background()
	h := newMemoryStore[Anything](t)
	ids := saveLines(t, h, "1", "2", "3", "4", "5")

	t.Run("forward", func(t *testing.T) {
		q := SearchQuery{Direction: Forward, StartID: &ids[1], EndID: &ids[3]}
		items, err := h.Search(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []string{"3", "4"}, commandLines(items))
	})

	t.Run("backward", func(t *testing.T) {
		q := SearchQuery{Direction: Backward, StartID: &ids[3], EndID: &ids[1]}
		items, err := h.Search(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []string{"3", "2"}, commandLines(items))
	})

	t.Run("backward from start only", func(t *testing.T) {
		q := SearchQuery{Direction: Backward, StartID: &ids[2]}
		items, err := h.Search(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []string{"2", "1"}, commandLines(items))
	})
}

func TestSearchTimeBounds(t *testing.T) {
	ctx := context.Background()
	h := newMemoryStore[Anything](t)

	at := func(sec int64) *time.Time { return Ptr(time.Unix(sec, 0).UTC()) }
	for i, line := range []string{"t10", "t20", "t30", "t40"} {
		_, err := h.Save(ctx, Item[Anything]{CommandLine: line, StartTimestamp: at(int64(i+1) * 10)})
		require.NoError(t, err)
	}
	_, err := h.Save(ctx, FromCommandLine("undated"))
	require.NoError(t, err)

	t.Run("forward", func(t *testing.T) {
		q := SearchQuery{Direction: Forward, StartTime: at(10), EndTime: at(30)}
		items, err := h.Search(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []string{"t20", "t30"}, commandLines(items))
	})

	t.Run("backward", func(t *testing.T) {
		q := SearchQuery{Direction: Backward, StartTime: at(40), EndTime: at(20)}
		items, err := h.Search(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []string{"t30", "t20"}, commandLines(items))
	})

	t.Run("undated items excluded by time bounds", func(t *testing.T) {
		q := SearchQuery{Direction: Forward, StartTime: at(0)}
		n, err := h.Count(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})
}

func TestSearchCommandLineMatching(t *testing.T) {
	ctx := context.Background()
	h := newMemoryStore[Anything](t)
	saveLines(t, h, "50% off", "500 off", "a_b", "axb", `dir c:\tmp`, "git status", "git",
		"LS -la", "ls", "xLAy", "als", "la-something")

	tests := []struct {
		name   string
		search *CommandLineSearch
		want   []string
	}{
		{"prefix percent is literal", Prefix("50%"), []string{"50% off"}},
		{"substring underscore is literal", Substring("_"), []string{"a_b"}},
		{"substring backslash", Substring(`c:\`), []string{`dir c:\tmp`}},
		{"prefix", Prefix("git"), []string{"git status", "git"}},
		{"exact", Exact("git"), []string{"git"}},
		{"exact no partial match", Exact("git stat"), nil},
		{"prefix is case sensitive", Prefix("ls"), []string{"ls"}},
		{"prefix does not match inside", Prefix("al"), []string{"als"}},
		{"substring", Substring("la"), []string{"LS -la", "la-something"}},
		{"substring is case sensitive", Substring("LA"), []string{"xLAy"}},
		{"exact is case sensitive", Exact("LS -la"), []string{"LS -la"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := h.Search(ctx, SearchQuery{Filter: SearchFilter{CommandLine: tt.search}})
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, items)
				return
			}
			assert.Equal(t, tt.want, commandLines(items))
		})
	}
}

func TestSearchPrefixScenario(t *testing.T) {
	ctx := context.Background()
	h := newMemoryStore[Anything](t)
	ids := saveLines(t, h, "ls", "cd /tmp", "ls -la", "als")

	items, err := h.Search(ctx, SearchQuery{Filter: SearchFilter{CommandLine: Prefix("ls")}})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, ids[0], *items[0].ID)
	assert.Equal(t, ids[2], *items[1].ID)

	items, err = h.Search(ctx, SearchQuery{Filter: SearchFilter{CommandLine: Substring("la")}})
	require.NoError(t, err)
	assert.Equal(t, []string{"ls -la"}, commandLines(items))
}

func TestSearchNegativeLimit(t *testing.T) {
	ctx := context.Background()
	h := newMemoryStore[Anything](t)
	saveLines(t, h, "one", "two")

	items, err := h.Search(ctx, SearchQuery{Limit: Ptr[int64](-1)})
	require.NoError(t, err)
	assert.Empty(t, items)

	n, err := h.Count(ctx, SearchQuery{Limit: Ptr[int64](-1)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSearchFilters(t *testing.T) {
	ctx := context.Background()
	h := newMemoryStore[Anything](t)

	fixtures := []Item[Anything]{
		{CommandLine: "make", Hostname: Ptr("alpha"), Cwd: Ptr("/src/app"), ExitStatus: Ptr[int64](0), SessionID: Ptr(newSessionID(1))},
		{CommandLine: "make test", Hostname: Ptr("alpha"), Cwd: Ptr("/src/app/pkg"), ExitStatus: Ptr[int64](2), SessionID: Ptr(newSessionID(1))},
		{CommandLine: "ls", Hostname: Ptr("beta"), Cwd: Ptr("/src_other"), ExitStatus: Ptr[int64](0), SessionID: Ptr(newSessionID(2))},
		{CommandLine: "ls", Hostname: Ptr("beta"), Cwd: Ptr("/tmp")},
		{CommandLine: "pwd", Cwd: Ptr("/Src/app")},
	}
	for _, item := range fixtures {
		_, err := h.Save(ctx, item)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter SearchFilter
		want   []string
	}{
		{"hostname", SearchFilter{Hostname: Ptr("alpha")}, []string{"make", "make test"}},
		{"cwd exact", SearchFilter{CwdExact: Ptr("/src/app")}, []string{"make"}},
		{"cwd prefix", SearchFilter{CwdPrefix: Ptr("/src/")}, []string{"make", "make test"}},
		{"cwd prefix underscore literal", SearchFilter{CwdPrefix: Ptr("/src_")}, []string{"ls"}},
		{"cwd prefix is case sensitive", SearchFilter{CwdPrefix: Ptr("/Src")}, []string{"pwd"}},
		{"succeeded", SearchFilter{ExitSuccessful: Ptr(true)}, []string{"make", "ls"}},
		{"failed", SearchFilter{ExitSuccessful: Ptr(false)}, []string{"make test"}},
		{"session", SearchFilter{SessionID: Ptr(newSessionID(1))}, []string{"make", "make test"}},
		{"not command line", SearchFilter{NotCommandLine: Ptr("ls")}, []string{"make", "make test", "pwd"}},
		{"combined", SearchFilter{Hostname: Ptr("alpha"), ExitSuccessful: Ptr(false)}, []string{"make test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := h.Search(ctx, SearchQuery{Filter: tt.filter})
			require.NoError(t, err)
			assert.Equal(t, tt.want, commandLines(items))

			n, err := h.Count(ctx, SearchQuery{Filter: tt.filter})
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.want)), n)
		})
	}
}

func TestLastWithPrefix(t *testing.T) {
	ctx := context.Background()
	h := newMemoryStore[Anything](t)

	s1, s2 := Ptr(newSessionID(1)), Ptr(newSessionID(2))
	for _, item := range []Item[Anything]{
		{CommandLine: "git add .", SessionID: s1},
		{CommandLine: "git commit", SessionID: s2},
		{CommandLine: "ls", SessionID: s1},
	} {
		_, err := h.Save(ctx, item)
		require.NoError(t, err)
	}

	items, err := h.Search(ctx, LastWithPrefix("git", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"git commit"}, commandLines(items))

	items, err = h.Search(ctx, LastWithPrefix("git", s1))
	require.NoError(t, err)
	assert.Equal(t, []string{"git add ."}, commandLines(items))
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	h := newMemoryStore[Anything](t)
	ids := saveLines(t, h, "sleep 1")

	err := h.Update(ctx, ids[0], func(item Item[Anything]) Item[Anything] {
		item.ExitStatus = Ptr[int64](0)
		item.Duration = Ptr(time.Second)
		item.ID = Ptr(newItemID(12345))
		return item
	})
	require.NoError(t, err)

	loaded, err := h.Load(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "sleep 1", loaded.CommandLine)
	assert.Equal(t, int64(0), *loaded.ExitStatus)
	assert.Equal(t, time.Second, *loaded.Duration)

	_, err = h.Load(ctx, newItemID(12345))
	assert.True(t, histerrors.IsNotFound(err), "update never moves an item to a new id")

	err = h.Update(ctx, newItemID(777), func(item Item[Anything]) Item[Anything] { return item })
	assert.True(t, histerrors.IsNotFound(err))
}

func TestNewSessionID(t *testing.T) {
	ctx := context.Background()
	h := newMemoryStore[Anything](t)

	first, err := h.NewSessionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.v)

	second, err := h.NewSessionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.v, "allocated ids are not reused before items are saved")

	_, err = h.Save(ctx, Item[Anything]{CommandLine: "imported", SessionID: Ptr(newSessionID(40))})
	require.NoError(t, err)

	third, err := h.NewSessionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(41), third.v)
}

func TestNewSessionIDAcrossHandles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	a, err := NewSQLiteBacked[Anything](path)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewSQLiteBacked[Anything](path)
	require.NoError(t, err)
	defer b.Close()

	seen := map[int64]bool{}
	for i := 0; i < 5; i++ {
		for _, h := range []*SQLiteBacked[Anything]{a, b} {
			id, err := h.NewSessionID(ctx)
			require.NoError(t, err)
			assert.False(t, seen[id.v], "session id %d handed out twice", id.v)
			seen[id.v] = true
		}
	}
	assert.Len(t, seen, 10)
}

func TestResolveIDs(t *testing.T) {
	ctx := context.Background()
	h := newMemoryStore[Anything](t)
	ids := saveLines(t, h, "ls")

	id, err := h.ResolveItemID(ctx, ids[0].v)
	require.NoError(t, err)
	assert.Equal(t, ids[0], id)

	_, err = h.ResolveItemID(ctx, ids[0].v+1)
	assert.True(t, histerrors.IsNotFound(err))

	_, err = h.ResolveSessionID(ctx, 1)
	assert.True(t, histerrors.IsNotFound(err), "no session handed out yet")

	session, err := h.NewSessionID(ctx)
	require.NoError(t, err)

	resolved, err := h.ResolveSessionID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, session, resolved)

	_, err = h.ResolveSessionID(ctx, 0)
	assert.True(t, histerrors.IsNotFound(err))
}

func TestPayloadTolerance(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	rich, err := NewSQLiteBacked[shellInfo](path)
	require.NoError(t, err)
	saved, err := rich.Save(ctx, Item[shellInfo]{CommandLine: "vim", MoreInfo: &shellInfo{Shell: "fish", Pid: 1}})
	require.NoError(t, err)
	require.NoError(t, rich.Close())

	t.Run("default payload reads any value", func(t *testing.T) {
		plain, err := NewSQLiteBacked[Anything](path)
		require.NoError(t, err)
		defer plain.Close()

		loaded, err := plain.Load(ctx, newItemID(saved.ID.v))
		require.NoError(t, err)
		assert.Equal(t, "vim", loaded.CommandLine)
		assert.NotNil(t, loaded.MoreInfo)
	})

	t.Run("incompatible payload is a serialization error", func(t *testing.T) {
		numbers, err := NewSQLiteBacked[[]int](path)
		require.NoError(t, err)
		defer numbers.Close()

		_, err = numbers.Load(ctx, newItemID(saved.ID.v))
		require.Error(t, err)
		assert.True(t, histerrors.IsSerialization(err))

		_, err = numbers.Search(ctx, Everything(Forward))
		assert.True(t, histerrors.IsSerialization(err))
	})
}

func TestSaveUnencodablePayload(t *testing.T) {
	ctx := context.Background()
	h := newMemoryStore[unencodable](t)

	_, err := h.Save(ctx, Item[unencodable]{CommandLine: "x", MoreInfo: &unencodable{C: make(chan int)}})
	require.Error(t, err)
	assert.True(t, histerrors.IsSerialization(err))

	n, err := h.Count(ctx, Everything(Forward))
	require.NoError(t, err)
	assert.Zero(t, n, "a failed save leaves the store unchanged")
}

func TestNewSQLiteBackedCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c", "history.db")

	h, err := NewSQLiteBacked[Anything](path)
	require.NoError(t, err)
	defer h.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
	assert.Equal(t, path, h.Path())
}

func TestNewSQLiteBackedIOError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o644))

	_, err := NewSQLiteBacked[Anything](filepath.Join(blocker, "nested", "history.db"))
	require.Error(t, err)
	assert.True(t, histerrors.IsIO(err))
}

func TestPersistenceAndSync(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	h, err := NewSQLiteBacked[Anything](path)
	require.NoError(t, err)
	saveLines(t, h, "first", "second")
	require.NoError(t, h.Sync(ctx))
	require.NoError(t, h.Close())

	reopened, err := NewSQLiteBacked[Anything](path, WithMmapSize(0), WithBusyTimeout(time.Second))
	require.NoError(t, err)
	defer reopened.Close()

	items, err := reopened.Search(ctx, Everything(Forward))
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, commandLines(items))
}

func TestInMemoryIsEphemeral(t *testing.T) {
	ctx := context.Background()

	h, err := NewInMemory[Anything]()
	require.NoError(t, err)
	saveLines(t, h, "gone")
	require.NoError(t, h.Sync(ctx))
	require.NoError(t, h.Close())

	fresh := newMemoryStore[Anything](t)
	n, err := fresh.Count(ctx, Everything(Forward))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, InMemoryPath, fresh.Path())
}

func TestInfo(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	h, err := NewSQLiteBacked[Anything](path)
	require.NoError(t, err)
	defer h.Close()

	for _, item := range []Item[Anything]{
		{CommandLine: "a", SessionID: Ptr(newSessionID(1))},
		{CommandLine: "b", SessionID: Ptr(newSessionID(1))},
		{CommandLine: "c", SessionID: Ptr(newSessionID(2))},
		{CommandLine: "d"},
	} {
		_, err := h.Save(ctx, item)
		require.NoError(t, err)
	}

	require.NoError(t, h.Sync(ctx))

	info, err := h.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, path, info.Path)
	assert.Equal(t, int64(4), info.Items)
	assert.Equal(t, int64(2), info.Sessions)
	assert.Equal(t, "wal", info.JournalMode)
	assert.Positive(t, info.SizeBytes)
}

func TestBackendErrorClassification(t *testing.T) {
	err := backendError("save", "could not write item", histerrors.New("plain failure"))
	assert.True(t, histerrors.IsBackend(err))
	assert.False(t, histerrors.IsRetryable(err))
}
