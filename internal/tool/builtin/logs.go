package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/harunnryd/torque/internal/backend"
	"github.com/harunnryd/torque/internal/shop"
	toolcore "github.com/harunnryd/torque/internal/tool"
)

func init() {
	toolcore.RegisterBuiltin("query_logs", func(options toolcore.BuiltinOptions) (toolcore.Builtin, error) {
		def := toolcore.Definition{
			Name:        "query_logs",
			Description: "Read recent application log entries, optionally filtered by level and text.",
			Parameters: schema(map[string]interface{}{
				"level":         enumProp("Minimum level", "debug", "info", "warn", "error"),
				"contains":      prop("string", "Text the message must contain"),
				"since_minutes": prop("integer", "Only entries newer than this many minutes"),
				"limit":         prop("integer", "Maximum number of entries"),
			}),
		}
		return builtinWithBackend(options, def, func(ctx context.Context, params map[string]interface{}, _ shop.Snapshot) (toolcore.Result, error) {
			q := backend.LogQuery{
				Level:    toolcore.String(params, "level"),
				Contains: toolcore.String(params, "contains"),
				Limit:    options.LogLimit,
			}
			if n, ok := toolcore.Int(params, "limit"); ok && n > 0 && n < q.Limit {
				q.Limit = n
			}
			if minutes, ok := toolcore.Int(params, "since_minutes"); ok && minutes > 0 {
				q.Since = time.Now().Add(-time.Duration(minutes) * time.Minute)
			}
			entries, err := options.Backend.QueryLogs(ctx, q)
			if err != nil {
				return backendFailure("log query", err)
			}
			if len(entries) == 0 {
				return toolcore.NoResults("no log entries matched"), nil
			}
			return toolcore.Success(fmt.Sprintf("found %d log entries", len(entries)), entries), nil
		})
	})
}
