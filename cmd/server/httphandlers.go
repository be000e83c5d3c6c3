package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"example.com/jsonblog/internal/blog"
	"example.com/jsonblog/internal/flash"
	"example.com/jsonblog/internal/middleware"
	"example.com/jsonblog/internal/views"
	"github.com/gorilla/mux"
)

const (
	msgAdded   = "Blog post added successfully!"
	msgDeleted = "Blog post deleted successfully!"
	msgUpdated = "Blog post updated successfully!"
	msgLiked   = "Post liked!"
)

// --- HTML Handlers ---

// indexHandler renders the full collection with any pending notifications.
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	posts, err := s.blog.List()
	if err != nil {
		s.internalError(w, r, "http/index", "Failed to load posts", err)
		return
	}
	s.render(w, r, views.IndexPage, views.PageData{
		Title:   "Blog",
		Flashes: s.flashes.Pop(w, r),
		Posts:   posts,
	})
}

// addHandler shows the entry form on GET and creates a post on POST.
// Missing form fields are stored as empty strings.
func (s *Server) addHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.render(w, r, views.AddPage, views.PageData{Title: "Add post", Flashes: s.flashes.Pop(w, r)})
		return
	}

	author, title, content, ok := postFields(w, r)
	if !ok {
		return
	}

	post, err := s.blog.Add(author, title, content)
	if err != nil {
		s.internalError(w, r, "http/add", "Failed to add post", err)
		return
	}

	logInfo(r, "http/add", "Post created with id="+post.ID)
	s.notifyAndRedirect(w, r, msgAdded)
}

// deleteHandler removes the post if present. A missing id still reports
// success and redirects.
func (s *Server) deleteHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["post_id"]

	err := s.blog.Delete(id)
	switch {
	case errors.Is(err, blog.ErrPostNotFound):
		logDebug(r, "http/delete", "No post with id="+id)
	case err != nil:
		s.internalError(w, r, "http/delete", "Failed to delete post", err)
		return
	default:
		logInfo(r, "http/delete", "Post deleted with id="+id)
	}

	s.notifyAndRedirect(w, r, msgDeleted)
}

// updateHandler answers 404 for an unknown id before looking at the body,
// shows the pre-filled form on GET and overwrites all three fields on POST.
func (s *Server) updateHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["post_id"]

	post, err := s.blog.Get(id)
	if errors.Is(err, blog.ErrPostNotFound) {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.internalError(w, r, "http/update", "Failed to load post", err)
		return
	}

	if r.Method != http.MethodPost {
		s.render(w, r, views.UpdatePage, views.PageData{Title: "Update post", Flashes: s.flashes.Pop(w, r), Post: post})
		return
	}

	author, title, content, ok := postFields(w, r)
	if !ok {
		return
	}

	// the post may have been deleted since Get
	_, err = s.blog.Update(id, author, title, content)
	if errors.Is(err, blog.ErrPostNotFound) {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.internalError(w, r, "http/update", "Failed to update post", err)
		return
	}

	logInfo(r, "http/update", "Post updated with id="+id)
	s.notifyAndRedirect(w, r, msgUpdated)
}

// likeHandler bumps the like counter. An unknown id redirects silently,
// without a notification.
func (s *Server) likeHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	_, err := s.blog.Like(id)
	switch {
	case errors.Is(err, blog.ErrPostNotFound):
		logDebug(r, "http/like", "No post with id="+id)
		http.Redirect(w, r, "/", http.StatusFound)
	case err != nil:
		s.internalError(w, r, "http/like", "Failed to like post", err)
	default:
		s.notifyAndRedirect(w, r, msgLiked)
	}
}

// --- JSON Handlers ---

// listPostsAPIHandler returns the collection in the same shape as the data file.
func (s *Server) listPostsAPIHandler(w http.ResponseWriter, r *http.Request) {
	posts, err := s.blog.List()
	if err != nil {
		s.internalError(w, r, "http/api", "Failed to load posts", err)
		return
	}
	writeJSON(w, r, http.StatusOK, posts)
}

func (s *Server) getPostAPIHandler(w http.ResponseWriter, r *http.Request) {
	post, err := s.blog.Get(mux.Vars(r)["post_id"])
	if errors.Is(err, blog.ErrPostNotFound) {
		writeJSON(w, r, http.StatusNotFound, map[string]string{"error": "post not found"})
		return
	}
	if err != nil {
		s.internalError(w, r, "http/api", "Failed to load post", err)
		return
	}
	writeJSON(w, r, http.StatusOK, post)
}

// --- helpers ---

func postFields(w http.ResponseWriter, r *http.Request) (author, title, content string, ok bool) {
	if err := r.ParseForm(); err != nil {
		logError(r, "http/form", "Invalid form body", err)
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return "", "", "", false
	}
	return r.PostForm.Get("author"), r.PostForm.Get("title"), r.PostForm.Get("content"), true
}

func (s *Server) notifyAndRedirect(w http.ResponseWriter, r *http.Request, text string) {
	if err := s.flashes.Add(w, r, flash.CategorySuccess, text); err != nil {
		logError(r, "http/flash", "Failed to set notification", err)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, page string, data views.PageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.views.Render(w, page, data); err != nil {
		s.internalError(w, r, "http/render", "Failed to render "+page, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, module, msg string, err error) {
	logError(r, module, msg, err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logError(r, "http/api", "Failed to write response", err)
	}
}

// withRequestID prefixes msg with the id RequestLog attached to r.
func withRequestID(r *http.Request, msg string) string {
	if id, ok := middleware.RequestIDFromContext(r.Context()); ok {
		return "request_id=" + id + " " + msg
	}
	return msg
}

func logInfo(r *http.Request, module, msg string) { logg.Info(module, withRequestID(r, msg)) }

func logDebug(r *http.Request, module, msg string) { logg.Debug(module, withRequestID(r, msg)) }

func logError(r *http.Request, module, msg string, err error) {
	logg.Error(module, withRequestID(r, msg), err)
}
