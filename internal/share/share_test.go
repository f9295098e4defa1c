package share

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
)

func TestBuild(t *testing.T) {
	result := domain.MatchResult{CelebrityID: "2", Name: "Emma Watson", MatchPercentage: 87}

	content := Build(result, "https://celebmatch.example.com")

	assert.Equal(t, "I'm 87% like Emma Watson!", content.Title)
	assert.Equal(t, "#CelebTwin #FaceMatch #LookAlike #Celebrity #AI", content.Hashtags)
	assert.Equal(t, "https://celebmatch.example.com", content.ShareURL)
	assert.NotEmpty(t, content.Description)
}

func TestBuild_Deterministic(t *testing.T) {
	result := domain.MatchResult{CelebrityID: "5", Name: "Robert Downey Jr", MatchPercentage: 64}

	first := Build(result, "")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Build(result, ""))
	}
}

func TestBuild_DescriptionsCovered(t *testing.T) {
	seen := map[int]bool{}
	for pct := 10; pct <= 98; pct++ {
		seen[pick(domain.MatchResult{CelebrityID: "1", MatchPercentage: pct})] = true
	}
	assert.Len(t, seen, len(descriptions))
}
