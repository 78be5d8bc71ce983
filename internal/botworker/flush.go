package botworker

import (
	"context"
	"fmt"

	"github.com/JakeFAU/browserbot-relay/internal/channel"
)

// FlushChannels deletes the listen channels for a character range, for full
// environment resets between test runs. The pattern matches exactly one
// character after the prefix, so single-use response keys (which carry a
// command name in that position) are never touched.
func FlushChannels(ctx context.Context, ch channel.Channel, prefix, charRange string) (int, error) {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if charRange == "" {
		charRange = CodeCharset
	}
	pattern := fmt.Sprintf("%s-[%s]", prefix, charRange)
	removed, err := ch.DeleteMatching(ctx, pattern)
	if err != nil {
		return removed, fmt.Errorf("flush channels %s: %w", pattern, err)
	}
	return removed, nil
}
