package audit

import (
	"context"
	"strconv"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/matching"
)

// BuildObserver records every descriptor cache build. Register it with
// DescriptorCache.OnBuild.
func BuildObserver(l Logger) func(*matching.BuildReport, error) {
	return func(report *matching.BuildReport, err error) {
		event := Event{
			EventType: EventDescriptorsBuilt,
			Success:   err == nil,
			Metadata:  map[string]string{},
		}
		if err != nil {
			event.Error = err.Error()
		}
		if report != nil {
			event.Metadata["version"] = strconv.FormatUint(report.Version, 10)
			event.Metadata["total"] = strconv.Itoa(report.Total)
			event.Metadata["succeeded"] = strconv.Itoa(report.Succeeded)
			event.Metadata["failed"] = strconv.Itoa(len(report.Failures))
		}
		_ = l.Log(context.Background(), event)
	}
}
