package archive

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestObjectPath(t *testing.T) {
	t.Parallel()

	now := time.Unix(0, 1700000000000000000)
	nanos := now.UnixNano()

	tests := []struct {
		name     string
		prefix   string
		code     string
		pagePath string
		want     string
	}{
		{
			name:     "simple page",
			prefix:   "pages",
			code:     "abc123",
			pagePath: "/survey",
			want:     fmt.Sprintf("pages/abc123/survey-%d.html", nanos),
		},
		{
			name:     "nested page path flattened",
			prefix:   "pages",
			code:     "abc123",
			pagePath: "/p/abc123/survey/1/",
			want:     fmt.Sprintf("pages/abc123/p_abc123_survey_1-%d.html", nanos),
		},
		{
			name:     "root page",
			prefix:   "pages",
			code:     "abc123",
			pagePath: "/",
			want:     fmt.Sprintf("pages/abc123/root-%d.html", nanos),
		},
		{
			name:     "no prefix",
			prefix:   "",
			code:     "abc123",
			pagePath: "/survey",
			want:     fmt.Sprintf("abc123/survey-%d.html", nanos),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, ObjectPath(tt.prefix, tt.code, tt.pagePath, now))
		})
	}
}
