package llm

import (
	"context"

	"github.com/billie-coop/pacer/internal/stream"
)

// StreamAfterMarker streams a response and forwards only the text after
// the first occurrence of marker to onContent. found reports whether the
// marker appeared before the stream ended; a missing marker is not an
// error.
func StreamAfterMarker(ctx context.Context, client Client, messages []Message, marker string, onContent func(string)) (found bool, err error) {
	router, err := stream.NewRouter(marker, onContent)
	if err != nil {
		return false, err
	}

	if err := client.Stream(ctx, messages, router.Feed); err != nil {
		return router.Triggered(), err
	}
	return router.Triggered(), nil
}
