// Package flash carries one-shot notifications across a redirect in an
// HS256-signed cookie.
package flash

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	CookieName = "flash"
	ttl        = 5 * time.Minute
)

const CategorySuccess = "success"

// Message is a single notification.
type Message struct {
	Category string `json:"category"`
	Text     string `json:"text"`
}

type claims struct {
	Messages []Message `json:"messages"`
	jwt.RegisteredClaims
}

// Jar reads and writes flash cookies signed with one secret.
type Jar struct {
	secret []byte
	now    func() time.Time
}

func NewJar(secret string) *Jar {
	return &Jar{secret: []byte(secret), now: time.Now}
}

// Add queues a message for the next page render. Messages already pending
// on the request are kept.
func (j *Jar) Add(w http.ResponseWriter, r *http.Request, category, text string) error {
	pending := j.read(r)
	pending = append(pending, Message{Category: category, Text: text})

	now := j.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Messages: pending,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString(j.secret)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Pop returns pending messages and clears the cookie. Missing, tampered
// and expired cookies yield nothing.
func (j *Jar) Pop(w http.ResponseWriter, r *http.Request) []Message {
	if _, err := r.Cookie(CookieName); err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return j.read(r)
}

func (j *Jar) read(r *http.Request) []Message {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil
	}

	var cl claims
	_, err = jwt.ParseWithClaims(c.Value, &cl, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return j.secret, nil
	}, jwt.WithTimeFunc(j.now))
	if err != nil {
		return nil
	}
	return cl.Messages
}
