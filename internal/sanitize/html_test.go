package sanitize_test

import (
	"testing"

	"github.com/DeafMist/econ-news-radar/backend/internal/sanitize"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "기준금리 동결", want: "기준금리 동결"},
		{name: "tags", input: "<p>한국은행 <b>기준금리</b></p>", want: "한국은행 기준금리"},
		{name: "blocks are separated", input: "<p>first</p><p>second</p>", want: "first second"},
		{name: "entities", input: "Fed &amp; BOK", want: "Fed & BOK"},
		{name: "script dropped", input: "<script>alert(1)</script>news", want: "news"},
		{name: "escaped markup decodes once", input: "&lt;b&gt;bold&lt;/b&gt;", want: "<b>bold</b>"},
	}

	s := sanitize.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, s.Sanitize(tt.input))
		})
	}
}
