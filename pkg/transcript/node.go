// Package transcript records finished exchanges as a content-addressed chain
// of nodes, one chain per conversation. It is an audit trail: nothing read
// back from it is ever replayed into a live conversation.
package transcript

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/papercomputeco/dialogue/pkg/llm"
)

// Source says where an assistant reply came from.
type Source string

const (
	SourceUser        Source = "user"
	SourceModel       Source = "model"
	SourcePlaceholder Source = "placeholder"
	SourceFallback    Source = "fallback"
)

// Entry is the hashed content of a node.
type Entry struct {
	Conversation string   `json:"conversation"`
	Domain       string   `json:"domain"`
	Role         llm.Role `json:"role"`
	Content      string   `json:"content"`
	Model        string   `json:"model,omitempty"`
	Source       Source   `json:"source"`
	Error        string   `json:"error,omitempty"`
}

// Node is one recorded message.
type Node struct {
	// Hash is the SHA-256 of the entry and parent hash, hex-encoded.
	Hash string `json:"hash"`

	// ParentHash is nil for the first message of a conversation.
	ParentHash *string `json:"parent_hash"`

	Entry Entry `json:"entry"`

	// CreatedAt is when the message was created. It is not part of the hash.
	CreatedAt time.Time `json:"created_at"`
}

type hashInput struct {
	Entry  Entry  `json:"entry"`
	Parent string `json:"parent,omitempty"`
}

// NewNode builds a node for entry linked under parent.
func NewNode(entry Entry, parent *Node, createdAt time.Time) *Node {
	n := &Node{
		Entry:     entry,
		CreatedAt: createdAt.UTC(),
	}
	if parent != nil {
		h := parent.Hash
		n.ParentHash = &h
	}
	n.Hash = n.computeHash()
	return n
}

// Verify reports whether the stored hash matches the node's content.
func (n *Node) Verify() bool {
	return n.Hash == n.computeHash()
}

func (n *Node) computeHash() string {
	in := hashInput{Entry: n.Entry}
	if n.ParentHash != nil {
		in.Parent = *n.ParentHash
	}

	// Entry is a flat struct of strings, so encoding is deterministic.
	data, err := json.Marshal(in)
	if err != nil {
		panic("transcript: marshal hash input: " + err.Error())
	}

	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
