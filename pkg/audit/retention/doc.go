// Package retention prunes old audit records on a schedule.
//
// The Pruner deletes records past the retention period; the Scheduler
// runs it on a cron expression, e.g. daily at 3 AM:
//
//	pruner := retention.NewPruner(storage, &retention.Config{
//		RetentionDays: 90,
//		PruneSchedule: "0 3 * * *",
//	})
//	pruner.Scheduler().Start(ctx)
package retention
