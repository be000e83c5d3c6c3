package blog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	appkafka "example.com/jsonblog/internal/broker"
	"example.com/jsonblog/internal/models"
	"example.com/jsonblog/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func newService(t *testing.T, posts ...models.Post) (*Service, *store.MemoryStore, *appkafka.MockKafka) {
	t.Helper()
	st := store.NewMemory(posts...)
	events := &appkafka.MockKafka{}
	return New(st, events), st, events
}

func stored(t *testing.T, st store.Repository) []models.Post {
	t.Helper()
	posts, err := st.Load()
	require.NoError(t, err)
	return posts
}

func TestAdd_AppendsWithFreshID(t *testing.T) {
	existing := models.Post{ID: "old", Author: "x", Title: "y", Content: "z"}
	svc, st, events := newService(t, existing)

	post, err := svc.Add("A", "T", "C")
	require.NoError(t, err)

	posts := stored(t, st)
	require.Len(t, posts, 2)
	assert.Equal(t, existing, posts[0])
	assert.Equal(t, post, posts[1])
	assert.Equal(t, "A", post.Author)
	assert.Equal(t, "T", post.Title)
	assert.Equal(t, "C", post.Content)
	assert.Nil(t, post.Likes)
	assert.NotEmpty(t, post.ID)
	assert.NotEqual(t, "old", post.ID)

	written := events.Written()
	require.Len(t, written, 1)
	ev, err := appkafka.DecodeEvent(written[0])
	require.NoError(t, err)
	assert.Equal(t, models.PostCreated, ev.Type)
	assert.Equal(t, post.ID, ev.Post.ID)
}

func TestAdd_AcceptsEmptyFields(t *testing.T) {
	svc, st, _ := newService(t)

	_, err := svc.Add("", "", "")
	require.NoError(t, err)
	assert.Len(t, stored(t, st), 1)
}

func TestAdd_IDsAreUnique(t *testing.T) {
	svc, _, _ := newService(t)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		p, err := svc.Add("a", "t", "c")
		require.NoError(t, err)
		assert.False(t, seen[p.ID], "id reused: %s", p.ID)
		seen[p.ID] = true
	}
}

func TestDelete_RemovesOnlyThatPost(t *testing.T) {
	svc, st, _ := newService(t,
		models.Post{ID: "1", Title: "one"},
		models.Post{ID: "2", Title: "two"},
		models.Post{ID: "3", Title: "three"},
	)

	require.NoError(t, svc.Delete("2"))

	posts := stored(t, st)
	require.Len(t, posts, 2)
	assert.Equal(t, "1", posts[0].ID)
	assert.Equal(t, "3", posts[1].ID)
}

func TestDelete_OnlyFirstDuplicate(t *testing.T) {
	svc, st, _ := newService(t,
		models.Post{ID: "dup", Title: "first"},
		models.Post{ID: "dup", Title: "second"},
	)

	require.NoError(t, svc.Delete("dup"))

	posts := stored(t, st)
	require.Len(t, posts, 1)
	assert.Equal(t, "second", posts[0].Title)
}

func TestDelete_MissingLeavesCollection(t *testing.T) {
	svc, st, events := newService(t, models.Post{ID: "1"})

	err := svc.Delete("nope")
	assert.ErrorIs(t, err, ErrPostNotFound)
	assert.Len(t, stored(t, st), 1)
	assert.Equal(t, 1, st.SaveCount(), "a miss still saves the unchanged collection")
	assert.Empty(t, events.Written())
}

func TestUpdate_OverwritesFieldsKeepsIDAndLikes(t *testing.T) {
	svc, st, _ := newService(t,
		models.Post{ID: "1", Author: "a", Title: "t", Content: "c", Likes: intPtr(4)},
		models.Post{ID: "2"},
	)

	post, err := svc.Update("1", "A2", "", "C2")
	require.NoError(t, err)

	posts := stored(t, st)
	require.Len(t, posts, 2)
	assert.Equal(t, post, posts[0])
	assert.Equal(t, models.Post{ID: "1", Author: "A2", Title: "", Content: "C2", Likes: intPtr(4)}, posts[0])
}

func TestUpdate_Missing(t *testing.T) {
	svc, st, _ := newService(t, models.Post{ID: "1", Title: "keep"})

	_, err := svc.Update("2", "a", "b", "c")
	assert.ErrorIs(t, err, ErrPostNotFound)
	assert.Equal(t, "keep", stored(t, st)[0].Title)
	assert.Equal(t, 0, st.SaveCount())
}

func TestLike_InitializesThenIncrements(t *testing.T) {
	svc, st, _ := newService(t, models.Post{ID: "1"})

	post, err := svc.Like("1")
	require.NoError(t, err)
	assert.Equal(t, 1, post.LikeCount())

	_, err = svc.Like("1")
	require.NoError(t, err)
	assert.Equal(t, 2, *stored(t, st)[0].Likes)
}

func TestLike_MissingIsNotFound(t *testing.T) {
	svc, st, _ := newService(t, models.Post{ID: "1"})

	_, err := svc.Like("2")
	assert.ErrorIs(t, err, ErrPostNotFound)
	assert.Nil(t, stored(t, st)[0].Likes)
}

func TestLike_ConcurrentLikesAreNotLost(t *testing.T) {
	svc, st, _ := newService(t, models.Post{ID: "1"})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Like("1")
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, *stored(t, st)[0].Likes)
}

func TestGet(t *testing.T) {
	svc, _, _ := newService(t, models.Post{ID: "1", Title: "t"})

	post, err := svc.Get("1")
	require.NoError(t, err)
	assert.Equal(t, "t", post.Title)

	_, err = svc.Get("x")
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestStoreErrorsPropagate(t *testing.T) {
	svc := New(&store.MockStoreFail{}, nil)

	_, err := svc.List()
	assert.Error(t, err)
	_, err = svc.Add("a", "b", "c")
	assert.Error(t, err)
	assert.Error(t, svc.Delete("1"))
	_, err = svc.Update("1", "a", "b", "c")
	assert.Error(t, err)
	_, err = svc.Like("1")
	assert.Error(t, err)
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	st := store.NewMemory()
	svc := New(st, &appkafka.MockKafkaFail{})

	_, err := svc.Add("a", "t", "c")
	require.NoError(t, err)
	assert.Len(t, stored(t, st), 1)
}

func TestApply_ReplaysIntoMirror(t *testing.T) {
	primary, _, events := newService(t)
	mirrorStore := store.NewMemory()
	mirror := New(mirrorStore, nil)

	p1, err := primary.Add("A", "T", "C")
	require.NoError(t, err)
	p2, err := primary.Add("B", "T2", "C2")
	require.NoError(t, err)
	_, err = primary.Like(p1.ID)
	require.NoError(t, err)
	_, err = primary.Update(p2.ID, "B", "edited", "C2")
	require.NoError(t, err)
	require.NoError(t, primary.Delete(p1.ID))

	for _, msg := range events.Written() {
		ev, err := appkafka.DecodeEvent(msg)
		require.NoError(t, err)
		require.NoError(t, mirror.Apply(ev))
	}

	want, err := primary.List()
	require.NoError(t, err)
	assert.Equal(t, want, stored(t, mirrorStore))
}

func TestApply_IsIdempotent(t *testing.T) {
	st := store.NewMemory()
	svc := New(st, nil)
	ev := models.PostEvent{Type: models.PostLiked, Post: models.Post{ID: "1", Likes: intPtr(1)}}

	require.NoError(t, svc.Apply(ev))
	require.NoError(t, svc.Apply(ev))
	assert.Len(t, stored(t, st), 1)
	assert.Equal(t, 1, st.SaveCount())

	del := models.PostEvent{Type: models.PostDeleted, Post: models.Post{ID: "1"}}
	require.NoError(t, svc.Apply(del))
	require.NoError(t, svc.Apply(del))
	assert.Empty(t, stored(t, st))
	assert.Equal(t, 2, st.SaveCount())
}

func TestApply_UnknownType(t *testing.T) {
	svc := New(store.NewMemory(), nil)
	assert.Error(t, svc.Apply(models.PostEvent{Type: "post_exploded", Post: models.Post{ID: "1"}}))
}

// Scenario: start with [], add one post, like it twice, delete it.
func TestScenario_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))
	svc := New(store.NewFileStore(path), nil)

	post, err := svc.Add("A", "T", "C")
	require.NoError(t, err)

	var raw []map[string]any
	readJSON(t, path, &raw)
	require.Len(t, raw, 1)
	assert.Equal(t, map[string]any{"id": post.ID, "author": "A", "title": "T", "content": "C"}, raw[0])

	for i := 0; i < 2; i++ {
		_, err := svc.Like(post.ID)
		require.NoError(t, err)
	}
	readJSON(t, path, &raw)
	assert.Equal(t, float64(2), raw[0]["likes"])

	require.NoError(t, svc.Delete(post.ID))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v), fmt.Sprintf("content: %s", data))
}
