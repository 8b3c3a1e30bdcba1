package tool

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// PrefixedID returns prefix_<uuidv7 hex>, e.g. pi_0192f3..., sortable by creation time.
func PrefixedID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(GenerateUUIDV7(), "-", "")
}

// RandomHex returns n random bytes hex encoded.
func RandomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
