// Package archive defines the optional page archive. Every prepare call
// announces the page a client is on; archiving that HTML gives a trail to
// replay when a bot's submit sequence desynchronizes from the page flow.
package archive

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Store persists one observed page per call and returns a URI for it.
type Store interface {
	PutPage(ctx context.Context, participantCode, pagePath string, html []byte) (string, error)
}

// ObjectPath builds the storage path for one observed page. Page paths are
// flattened so the participant code stays the only directory level below the
// prefix.
func ObjectPath(prefix, participantCode, pagePath string, now time.Time) string {
	page := strings.Trim(pagePath, "/")
	page = strings.ReplaceAll(page, "/", "_")
	if page == "" {
		page = "root"
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s-%d.html", participantCode, page, now.UnixNano())
	}
	return fmt.Sprintf("%s/%s/%s-%d.html", prefix, participantCode, page, now.UnixNano())
}
