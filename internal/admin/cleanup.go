package admin

import (
	"context"

	"github.com/dropDatabas3/iamprobe/internal/api"
	"github.com/dropDatabas3/iamprobe/internal/batch"
	"github.com/dropDatabas3/iamprobe/internal/metrics"
	"github.com/dropDatabas3/iamprobe/internal/observability/logger"
	"github.com/dropDatabas3/iamprobe/internal/tracker"
)

// CleanupReport resume un teardown. Los fallos no cortan el resto.
type CleanupReport struct {
	UsersDeleted int
	RolesDeleted int
	Failures     int
}

// Cleanup borra users y luego roles trackeados, con hard/force + leniency.
// Cada batch fallido se loguea y se ignora; solo los batches 2xx salen del set.
func Cleanup(ctx context.Context, caller *Caller, set tracker.Set, limits batch.Limits) CleanupReport {
	var rep CleanupReport
	log := logger.From(ctx).With(logger.Component("cleanup"))

	run := func(kind tracker.Kind, size int, del func(context.Context, []string) (*api.Response, error)) int {
		ids, err := set.Members(ctx, kind)
		if err != nil {
			log.Warn("tracker read failed", logger.Kind(string(kind)), logger.Err(err))
			metrics.CleanupFailures.WithLabelValues(string(kind)).Inc()
			rep.Failures++
			return 0
		}
		deleted := 0
		for _, chunk := range batch.Partition(ids, size) {
			resp, err := del(ctx, chunk)
			if err == nil && (resp.Status < 200 || resp.Status > 299) {
				err = api.Expect(resp, 200)
			}
			if err != nil {
				log.Warn("cleanup batch failed", logger.Kind(string(kind)), logger.Count(len(chunk)), logger.Err(err))
				metrics.CleanupFailures.WithLabelValues(string(kind)).Inc()
				rep.Failures++
				continue
			}
			_ = set.Remove(ctx, kind, chunk...)
			deleted += len(chunk)
		}
		return deleted
	}

	rep.UsersDeleted = run(tracker.User, limits.UserDelete, func(ctx context.Context, ids []string) (*api.Response, error) {
		return caller.DeleteUsers(ctx, ids, api.Enable, api.Enable)
	})
	rep.RolesDeleted = run(tracker.Role, limits.RoleDelete, func(ctx context.Context, names []string) (*api.Response, error) {
		return caller.DeleteRoles(ctx, names, api.Enable, api.Enable)
	})

	log.Info("cleanup completed",
		logger.Int("users_deleted", rep.UsersDeleted),
		logger.Int("roles_deleted", rep.RolesDeleted),
		logger.Int("failures", rep.Failures))
	return rep
}
