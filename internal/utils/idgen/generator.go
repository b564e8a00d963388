package idgen

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

const (
	ConversationPrefix = "conv"
	DocumentPrefix     = "doc"
	MessagePrefix      = "msg"
	NamespacePrefix    = "doc"

	defaultLength = 16
)

// GenerateSecureID generates a cryptographically secure ID with the given prefix and length.
// Uses only alphanumeric characters (0-9, a-z).
func GenerateSecureID(prefix string, length int) (string, error) {
	bytes := make([]byte, length*2)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	const charset = "0123456789abcdefghijklmnopqrstuvwxyz"
	encoded := make([]byte, length)
	for i := 0; i < length; i++ {
		encoded[i] = charset[bytes[i]%36]
	}

	return fmt.Sprintf("%s_%s", prefix, string(encoded)), nil
}

// NewConversationID returns a public conversation identifier.
func NewConversationID() (string, error) {
	return GenerateSecureID(ConversationPrefix, defaultLength)
}

// NewDocumentID returns a public document identifier.
func NewDocumentID() (string, error) {
	return GenerateSecureID(DocumentPrefix, defaultLength)
}

// NewMessageID returns a public message identifier.
func NewMessageID() (string, error) {
	return GenerateSecureID(MessagePrefix, defaultLength)
}

// NewVectorNamespace mints the token the worker uses to address a document's embeddings.
// Namespaces are random v4 UUIDs and are never derived from document identity, so a
// deleted document's namespace is never handed out again.
func NewVectorNamespace() string {
	return NamespacePrefix + "-" + uuid.NewString()
}
