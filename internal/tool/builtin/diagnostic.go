package builtin

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/harunnryd/torque/internal/shop"
	toolcore "github.com/harunnryd/torque/internal/tool"
)

var troubleCodePattern = regexp.MustCompile(`^[PBCU][0-9A-F]{4}$`)

func init() {
	toolcore.RegisterBuiltin("lookup_diagnostic_code", func(options toolcore.BuiltinOptions) (toolcore.Builtin, error) {
		def := toolcore.Definition{
			Name:        "lookup_diagnostic_code",
			Description: "Look up an OBD-II trouble code for the selected vehicle using forum analysis.",
			Parameters: schema(map[string]interface{}{
				"code": prop("string", "Trouble code such as P0420"),
			}, "code"),
			SuccessHint: "Summarize the most likely cause first, then the fixes.",
		}
		return builtinWithBackend(options, def, func(ctx context.Context, params map[string]interface{}, snap shop.Snapshot) (toolcore.Result, error) {
			code := strings.ToUpper(toolcore.String(params, "code"))
			if !troubleCodePattern.MatchString(code) {
				return toolcore.Failure(fmt.Sprintf("%q is not a valid trouble code (expected a form like P0420)", code)), nil
			}
			if snap.Vehicle == nil {
				return toolcore.Failure("select a vehicle before looking up a trouble code"), nil
			}
			result, err := options.Backend.LookupDiagnosticCode(ctx, code, *snap.Vehicle)
			if err != nil {
				return backendFailure("diagnostic lookup", err)
			}
			if result == nil || (result.Summary == "" && len(result.CommonCauses) == 0) {
				return toolcore.NoResults(fmt.Sprintf("no analysis found for %s on %s", code, snap.Vehicle.Describe())), nil
			}
			return toolcore.Success(fmt.Sprintf("%s on %s: %s", code, snap.Vehicle.Describe(), result.Summary), result), nil
		})
	})
}
