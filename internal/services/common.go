package services

import (
	"context"
	"regexp"
	"strconv"

	"github.com/brightpath/iep-backend/internal/observability"
	"github.com/brightpath/iep-backend/internal/platform/ctxutil"
	"github.com/brightpath/iep-backend/internal/platform/logger"
	"github.com/brightpath/iep-backend/internal/realtime"
	"github.com/brightpath/iep-backend/internal/realtime/bus"
	"github.com/brightpath/iep-backend/internal/versioning"
)

var academicYearRe = regexp.MustCompile(`^\d{4}-\d{4}$`)

// validateAcademicYear accepts the district's span form, e.g. 2024-2025.
// The two years must be consecutive.
func validateAcademicYear(year string) error {
	if !academicYearRe.MatchString(year) {
		return versioning.NewError(versioning.CodeValidation, "academic_year", "academic year must look like 2024-2025", nil)
	}
	first, _ := strconv.Atoi(year[:4])
	second, _ := strconv.Atoi(year[5:])
	if second != first+1 {
		return versioning.NewError(versioning.CodeValidation, "academic_year", "academic year must span consecutive years", nil)
	}
	return nil
}

// actorLabel is what lands in created_by/requested_by columns. Authn runs
// upstream; an absent actor is recorded as empty, not rejected.
func actorLabel(ctx context.Context) (id, role string) {
	if actor := ctxutil.GetActor(ctx); actor != nil {
		return actor.ID, actor.Role
	}
	return "", ""
}

func publish(ctx context.Context, eventBus bus.Bus, log *logger.Logger, msg realtime.SSEMessage) {
	if eventBus == nil {
		return
	}
	if err := eventBus.Publish(ctx, msg); err != nil {
		log.Warn("Failed to publish SSE message", "event", msg.Event, "channel", msg.Channel, "error", err)
		return
	}
	observability.Current().IncEventPublished(string(msg.Event))
}
