// Package blog implements the post operations on top of a store.Repository.
//
// Every operation loads the whole collection, applies at most one change and
// saves the whole collection back. A process-wide mutex serializes these
// cycles, so concurrent requests in one process cannot lose each other's
// writes. Several processes pointed at the same file still can.
package blog

import (
	"errors"
	"sync"
	"time"

	appkafka "example.com/jsonblog/internal/broker"
	"example.com/jsonblog/internal/logger"
	"example.com/jsonblog/internal/models"
	"example.com/jsonblog/internal/store"
	"github.com/google/uuid"
)

var logg = logger.New()

// ErrPostNotFound is returned when no post has the requested id.
var ErrPostNotFound = errors.New("post not found")

type Service struct {
	mu     sync.Mutex
	store  store.Repository
	events appkafka.KafkaWriter
	now    func() time.Time
	newID  func() string
}

// New returns a Service over st. A nil events writer disables publishing.
func New(st store.Repository, events appkafka.KafkaWriter) *Service {
	if events == nil {
		events = appkafka.NopWriter{}
	}
	return &Service{
		store:  st,
		events: events,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// List returns the collection in stored order.
func (s *Service) List() ([]models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Load()
}

// Get returns the first post whose id equals id.
func (s *Service) Get(id string) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.store.Load()
	if err != nil {
		return models.Post{}, err
	}
	i := indexOf(posts, id)
	if i < 0 {
		return models.Post{}, ErrPostNotFound
	}
	return posts[i], nil
}

// Add appends a new post with a fresh random id and no likes.
// Empty fields are accepted as they are.
func (s *Service) Add(author, title, content string) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.store.Load()
	if err != nil {
		return models.Post{}, err
	}

	post := models.Post{
		ID:      s.newID(),
		Author:  author,
		Title:   title,
		Content: content,
	}
	posts = append(posts, post)

	if err := s.commit(posts, models.PostCreated, post); err != nil {
		return models.Post{}, err
	}
	return post, nil
}

// Update overwrites author, title and content of the first matching post.
// The id and the like counter are kept.
func (s *Service) Update(id, author, title, content string) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.store.Load()
	if err != nil {
		return models.Post{}, err
	}
	i := indexOf(posts, id)
	if i < 0 {
		return models.Post{}, ErrPostNotFound
	}

	posts[i].Author = author
	posts[i].Title = title
	posts[i].Content = content

	if err := s.commit(posts, models.PostUpdated, posts[i]); err != nil {
		return models.Post{}, err
	}
	return posts[i], nil
}

// Delete removes the first matching post only. The collection is saved
// back even when no post matched; that case publishes nothing.
func (s *Service) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.store.Load()
	if err != nil {
		return err
	}
	i := indexOf(posts, id)
	if i < 0 {
		if err := s.store.Save(posts); err != nil {
			logg.Error("blog", "Failed to save posts", err)
			return err
		}
		return ErrPostNotFound
	}

	removed := posts[i]
	posts = append(posts[:i], posts[i+1:]...)

	return s.commit(posts, models.PostDeleted, removed)
}

// Like increments the counter of the first matching post, starting at 1.
func (s *Service) Like(id string) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.store.Load()
	if err != nil {
		return models.Post{}, err
	}
	i := indexOf(posts, id)
	if i < 0 {
		return models.Post{}, ErrPostNotFound
	}

	likes := posts[i].LikeCount() + 1
	posts[i].Likes = &likes

	if err := s.commit(posts, models.PostLiked, posts[i]); err != nil {
		return models.Post{}, err
	}
	return posts[i], nil
}

// Apply replays an event produced by another Service. Created, updated and
// liked events upsert the snapshot, deleted events remove the first match.
// Replaying the same event twice leaves the collection unchanged.
func (s *Service) Apply(ev models.PostEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.store.Load()
	if err != nil {
		return err
	}
	i := indexOf(posts, ev.Post.ID)

	switch ev.Type {
	case models.PostCreated, models.PostUpdated, models.PostLiked:
		snapshot := ev.Post.Clone()
		if i < 0 {
			posts = append(posts, snapshot)
		} else if samePost(posts[i], snapshot) {
			return nil
		} else {
			posts[i] = snapshot
		}
	case models.PostDeleted:
		if i < 0 {
			return nil
		}
		posts = append(posts[:i], posts[i+1:]...)
	default:
		return errors.New("unknown event type " + string(ev.Type))
	}

	if err := s.store.Save(posts); err != nil {
		logg.Error("blog", "Failed to save replayed event", err)
		return err
	}
	logg.Debug("blog", "Applied "+string(ev.Type)+" for post "+ev.Post.ID)
	return nil
}

// commit saves posts and then publishes the event. A failed publish is
// logged only: the stored collection is the source of truth.
func (s *Service) commit(posts []models.Post, typ models.EventType, post models.Post) error {
	if err := s.store.Save(posts); err != nil {
		logg.Error("blog", "Failed to save posts", err)
		return err
	}

	msg, err := appkafka.EventMessage(models.PostEvent{Type: typ, Post: post, At: s.now().UTC()})
	if err != nil {
		logg.Error("blog", "Failed to encode post event", err)
		return nil
	}
	if err := s.events.WriteMessages(msg); err != nil {
		logg.Error("blog", "Failed to publish "+string(typ), err)
	}
	return nil
}

func indexOf(posts []models.Post, id string) int {
	for i := range posts {
		if posts[i].ID == id {
			return i
		}
	}
	return -1
}

func samePost(a, b models.Post) bool {
	return a.ID == b.ID && a.Author == b.Author && a.Title == b.Title &&
		a.Content == b.Content && a.LikeCount() == b.LikeCount() && (a.Likes == nil) == (b.Likes == nil)
}
