package builtin

import (
	"context"
	"errors"
	"fmt"

	"github.com/harunnryd/torque/internal/shop"
	toolcore "github.com/harunnryd/torque/internal/tool"
)

func init() {
	toolcore.RegisterBuiltin("set_memory", func(options toolcore.BuiltinOptions) (toolcore.Builtin, error) {
		if options.Memory == nil {
			return toolcore.Builtin{}, errors.New("session memory is not configured")
		}
		def := toolcore.Definition{
			Name:        "set_memory",
			Description: "Remember a fact for the rest of this session, such as a symptom the technician described.",
			Parameters: schema(map[string]interface{}{
				"key":   prop("string", "Short name for the fact"),
				"value": prop("string", "The fact to remember"),
			}, "key", "value"),
		}
		return toolcore.Builtin{
			Definition: def,
			Handler: validated(def, func(_ context.Context, params map[string]interface{}, _ shop.Snapshot) (toolcore.Result, error) {
				key, err := toolcore.RequireString(params, "key")
				if err != nil {
					return toolcore.Failure(err.Error()), nil
				}
				value := toolcore.String(params, "value")
				options.Memory.SetMemory(key, value)
				return toolcore.Success(fmt.Sprintf("remembered %s", key), map[string]string{key: value}), nil
			}),
		}, nil
	})
}
