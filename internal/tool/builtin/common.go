package builtin

import (
	"context"
	"errors"
	"fmt"

	torqueErrors "github.com/harunnryd/torque/internal/errors"
	"github.com/harunnryd/torque/internal/shop"
	toolcore "github.com/harunnryd/torque/internal/tool"
)

var errNoBackend = errors.New("shop backend is not configured")

// validated runs the full parameter check before the handler so that a bad enum
// or type comes back as a descriptive error instead of a half-applied change.
func validated(def toolcore.Definition, h toolcore.Handler) toolcore.Handler {
	return func(ctx context.Context, params map[string]interface{}, snap shop.Snapshot) (toolcore.Result, error) {
		if err := toolcore.ValidateParams(def.Parameters, params); err != nil {
			return toolcore.Failure(err.Error()), nil
		}
		return h(ctx, params, snap)
	}
}

func builtinWithBackend(options toolcore.BuiltinOptions, def toolcore.Definition, h toolcore.Handler) (toolcore.Builtin, error) {
	if options.Backend == nil {
		return toolcore.Builtin{}, errNoBackend
	}
	return toolcore.Builtin{Definition: def, Handler: validated(def, h)}, nil
}

// backendFailure turns a backend error into a result the agent can act on. Missing
// records are reported as no_results, rejected requests and temporary outages as
// failures. Anything else is returned as an error for the dispatcher to report.
func backendFailure(action string, err error) (toolcore.Result, error) {
	switch {
	case errors.Is(err, torqueErrors.ErrNotFound):
		return toolcore.NoResults(fmt.Sprintf("%s: nothing found", action)), nil
	case errors.Is(err, torqueErrors.ErrInvalidInput), errors.Is(err, torqueErrors.ErrConflict):
		return toolcore.Failure(fmt.Sprintf("%s rejected: %v", action, err)), nil
	case torqueErrors.IsRetryable(err):
		return toolcore.Failure(fmt.Sprintf("%s is temporarily unavailable, try again: %v", action, err)), nil
	}
	return toolcore.Result{}, fmt.Errorf("%s: %w", action, err)
}

func selectedCustomerID(params map[string]interface{}, snap shop.Snapshot) (string, error) {
	if id := toolcore.String(params, "customer_id"); id != "" {
		return id, nil
	}
	if snap.Customer != nil && snap.Customer.ID != "" {
		return snap.Customer.ID, nil
	}
	return "", errors.New("no customer is selected; select a customer or pass customer_id")
}

func selectedVehicleID(params map[string]interface{}, snap shop.Snapshot) (string, error) {
	if id := toolcore.String(params, "vehicle_id"); id != "" {
		return id, nil
	}
	if snap.Vehicle != nil && snap.Vehicle.ID != "" {
		return snap.Vehicle.ID, nil
	}
	return "", errors.New("no vehicle is selected; select a vehicle or pass vehicle_id")
}

func schema(properties map[string]interface{}, required ...string) map[string]interface{} {
	s := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}

func enumProp(description string, values ...string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description, "enum": values}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
