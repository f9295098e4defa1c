// Package share builds the social sharing text shown next to a match.
package share

import (
	"fmt"
	"hash/fnv"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
)

const Hashtags = "#CelebTwin #FaceMatch #LookAlike #Celebrity #AI"

var descriptions = []func(r domain.MatchResult) string{
	func(r domain.MatchResult) string { return fmt.Sprintf("🎭 You're practically twins with %s!", r.Name) },
	func(r domain.MatchResult) string { return fmt.Sprintf("✨ %d%% celebrity DNA detected!", r.MatchPercentage) },
	func(r domain.MatchResult) string {
		return fmt.Sprintf("🌟 Hollywood called - they want you and %s for a buddy movie!", r.Name)
	},
	func(r domain.MatchResult) string { return fmt.Sprintf("🎬 Plot twist: You might actually BE %s!", r.Name) },
	func(r domain.MatchResult) string { return fmt.Sprintf("🔥 %s who? You're the real star here!", r.Name) },
}

// Build returns share content for result. The same result always yields the
// same description.
func Build(result domain.MatchResult, baseURL string) domain.ShareContent {
	return domain.ShareContent{
		Title:       fmt.Sprintf("I'm %d%% like %s!", result.MatchPercentage, result.Name),
		Description: descriptions[pick(result)](result),
		Hashtags:    Hashtags,
		ShareURL:    baseURL,
	}
}

func pick(r domain.MatchResult) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", r.CelebrityID, r.MatchPercentage)
	return int(h.Sum32() % uint32(len(descriptions)))
}
