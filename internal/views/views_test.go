package views

import (
	"bytes"
	"testing"

	"example.com/jsonblog/internal/flash"
	"example.com/jsonblog/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, page string, data PageData) string {
	t.Helper()
	r, err := New()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, page, data))
	return buf.String()
}

func TestIndex_ListsPostsAndFlashes(t *testing.T) {
	likes := 3
	body := render(t, IndexPage, PageData{
		Title:   "Blog",
		Flashes: []flash.Message{{Category: "success", Text: "Post liked!"}},
		Posts: []models.Post{
			{ID: "p1", Author: "Ann", Title: "Hello", Content: "World", Likes: &likes},
			{ID: "p2", Author: "Bob", Title: "<script>", Content: "x"},
		},
	})

	assert.Contains(t, body, `class="flash flash-success">Post liked!`)
	assert.Contains(t, body, "<h2>Hello</h2>")
	assert.Contains(t, body, "Likes: 3")
	assert.Contains(t, body, "Likes: 0")
	assert.Contains(t, body, `href="/like/p1"`)
	assert.Contains(t, body, `action="/delete/p2"`)
	assert.Contains(t, body, "&lt;script&gt;")
	assert.NotContains(t, body, "No posts yet.")
}

func TestIndex_Empty(t *testing.T) {
	assert.Contains(t, render(t, IndexPage, PageData{Title: "Blog"}), "No posts yet.")
}

func TestUpdate_PrefillsForm(t *testing.T) {
	body := render(t, UpdatePage, PageData{
		Title: "Update",
		Post:  models.Post{ID: "p1", Author: "Ann", Title: "Hello", Content: "World"},
	})

	assert.Contains(t, body, `action="/update/p1"`)
	assert.Contains(t, body, `value="Ann"`)
	assert.Contains(t, body, `value="Hello"`)
	assert.Contains(t, body, ">World</textarea>")
}

func TestAdd_HasFormFields(t *testing.T) {
	body := render(t, AddPage, PageData{Title: "Add"})
	for _, field := range []string{`name="author"`, `name="title"`, `name="content"`} {
		assert.Contains(t, body, field)
	}
}

func TestRender_UnknownPage(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	assert.Error(t, r.Render(&bytes.Buffer{}, "missing.html", PageData{}))
}
