// Package models holds the documents exchanged with the document store.
// Field names are the stored JSON keys.
package models

import (
	"slices"
	"time"
)

// Collection names.
const (
	CollectionUsers     = "users"
	CollectionUserChats = "userchats"
	CollectionChats     = "chats"
	CollectionAccounts  = "accounts"
)

// UserProfile is the public record of a user, users/{id}.
type UserProfile struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Avatar   string   `json:"avatar"`
	Blocked  []string `json:"blocked"`
}

// HasBlocked reports whether uid is in p's blocked set.
func (p *UserProfile) HasBlocked(uid string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Blocked, uid)
}

// Clone returns a deep copy.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.Blocked = slices.Clone(p.Blocked)
	return &c
}

// Message is one immutable entry of a conversation log. Img and Audio are
// omitted from the stored form when empty.
type Message struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq,omitempty"`
	SenderID  string    `json:"senderId"`
	Text      string    `json:"text"`
	Image     string    `json:"img,omitempty"`
	Audio     string    `json:"audio,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Conversation is chats/{id}: an append-only message log.
type Conversation struct {
	CreatedAt time.Time `json:"createdAt"`
	Messages  []Message `json:"messages"`
}

// ConversationSummary is one participant's index entry for a conversation.
// UpdatedAt is unix milliseconds.
type ConversationSummary struct {
	ChatID      string `json:"chatId"`
	ReceiverID  string `json:"receiverId"`
	LastMessage string `json:"lastMessage"`
	UpdatedAt   int64  `json:"updatedAt"`
	IsSeen      bool   `json:"isSeen"`
}

// UserChats is userchats/{uid}.
type UserChats struct {
	Chats []ConversationSummary `json:"chats"`
}

// Find returns the index of the summary for chatID, or -1.
func (u *UserChats) Find(chatID string) int {
	return slices.IndexFunc(u.Chats, func(s ConversationSummary) bool { return s.ChatID == chatID })
}

// Account is the credential record kept by the auth adapter,
// accounts/{email}.
type Account struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	Salt      []byte    `json:"salt"`
	Verifier  []byte    `json:"verifier"`
	CreatedAt time.Time `json:"createdAt"`
}
