package processing_test

import (
	"testing"

	"github.com/DeafMist/econ-news-radar/backend/internal/models"
	"github.com/DeafMist/econ-news-radar/backend/internal/processing"
	"github.com/stretchr/testify/require"
)

func TestExtractTags(t *testing.T) {
	e := processing.NewTagExtractor(processing.DefaultTagRules())

	tests := []struct {
		name     string
		title    string
		summary  string
		category string
		want     []string
	}{
		{name: "category only", title: "코스피 마감", category: "증시", want: []string{"증시"}},
		{name: "case insensitive", title: "Fed holds rates", category: "금리", want: []string{"금리", "연준"}},
		{name: "category not repeated", title: "기준금리 인상", category: "금리", want: []string{"금리"}},
		{name: "mapping order kept", title: "환율 상승에 물가 우려", summary: "BOK 대응", category: "거시경제", want: []string{"거시경제", "한국은행", "인플레이션", "환율"}},
		{
			name:     "capped at five with category first",
			title:    "한국은행 금융위 기재부 연준 금리 CPI 환율",
			category: "정책",
			want:     []string{"정책", "한국은행", "금융위", "기재부", "연준"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Extract(tt.title, tt.summary, tt.category)
			require.Equal(t, tt.want, got)
			require.LessOrEqual(t, len(got), processing.MaxTags)
			require.Equal(t, tt.category, got[0])
		})
	}
}

func TestExtractTagsCustomRules(t *testing.T) {
	e := processing.NewTagExtractor([]models.TagRule{
		{Name: "반도체", Keywords: []string{"semiconductor", "반도체"}},
	})
	require.Equal(t, []string{"산업", "반도체"}, e.Extract("Semiconductor exports", "", "산업"))
}
