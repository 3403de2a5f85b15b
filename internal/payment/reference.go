package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/frahmantamala/fleet-ledger/internal"
)

const referenceSuffixLength = 10

// ExistsFunc reports whether a reference number is already taken.
type ExistsFunc func(ctx context.Context, reference string) (bool, error)

// NewReference builds PREFIX-XXXXXXXXXX where the suffix is upper-case hex
// taken from a random uuid.
func NewReference(prefix string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:referenceSuffixLength]
	if prefix == "" {
		return suffix
	}
	return prefix + "-" + suffix
}

// GenerateUniqueReference retries until exists reports a free reference or
// maxAttempts is spent.
func GenerateUniqueReference(ctx context.Context, prefix string, maxAttempts int, exists ExistsFunc) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		ref := NewReference(prefix)
		taken, err := exists(ctx, ref)
		if err != nil {
			return "", fmt.Errorf("check reference %s: %w", ref, err)
		}
		if !taken {
			return ref, nil
		}
	}
	return "", internal.NewConflictError(
		fmt.Sprintf("could not generate a unique reference after %d attempts", maxAttempts),
		internal.ErrCodeReferenceExhausted,
	)
}
