package builtin

import (
	"context"
	"fmt"

	"github.com/harunnryd/torque/internal/shop"
	toolcore "github.com/harunnryd/torque/internal/tool"
)

func init() {
	toolcore.RegisterBuiltin("lookup_customer", func(options toolcore.BuiltinOptions) (toolcore.Builtin, error) {
		def := toolcore.Definition{
			Name:        "lookup_customer",
			Description: "Search customers by name, phone number or email.",
			Parameters: schema(map[string]interface{}{
				"query": prop("string", "Name, phone or email fragment"),
			}, "query"),
			SuccessHint: "The matching customers are listed on screen; ask which one to select.",
		}
		return builtinWithBackend(options, def, func(ctx context.Context, params map[string]interface{}, _ shop.Snapshot) (toolcore.Result, error) {
			query := toolcore.String(params, "query")
			customers, err := options.Backend.SearchCustomers(ctx, query)
			if err != nil {
				return backendFailure("customer search", err)
			}
			if len(customers) == 0 {
				return toolcore.NoResults(fmt.Sprintf("no customers matched %q", query)), nil
			}
			return toolcore.Success(fmt.Sprintf("found %s", plural(len(customers), "customer")), customers), nil
		})
	})

	toolcore.RegisterBuiltin("customer_details", func(options toolcore.BuiltinOptions) (toolcore.Builtin, error) {
		def := toolcore.Definition{
			Name:        "customer_details",
			Description: "Fetch contact details and vehicles of a customer. Defaults to the selected customer.",
			Parameters: schema(map[string]interface{}{
				"customer_id": prop("string", "Customer id; omit for the selected customer"),
			}),
		}
		return builtinWithBackend(options, def, func(ctx context.Context, params map[string]interface{}, snap shop.Snapshot) (toolcore.Result, error) {
			id, err := selectedCustomerID(params, snap)
			if err != nil {
				return toolcore.Failure(err.Error()), nil
			}
			customer, err := options.Backend.GetCustomer(ctx, id)
			if err != nil {
				return backendFailure("customer lookup", err)
			}
			vehicles, err := options.Backend.ListVehicles(ctx, id)
			if err != nil {
				return backendFailure("vehicle list", err)
			}
			return toolcore.Success(
				fmt.Sprintf("%s has %s on file", customer.FullName(), plural(len(vehicles), "vehicle")),
				map[string]interface{}{"customer": customer, "vehicles": vehicles},
			), nil
		})
	})

	toolcore.RegisterBuiltin("create_customer", func(options toolcore.BuiltinOptions) (toolcore.Builtin, error) {
		def := toolcore.Definition{
			Name:        "create_customer",
			Description: "Create a new customer record.",
			Parameters: schema(map[string]interface{}{
				"first_name": prop("string", "First name"),
				"last_name":  prop("string", "Last name"),
				"phone":      prop("string", "Phone number"),
				"email":      prop("string", "Email address"),
				"address":    prop("string", "Postal address"),
			}, "first_name", "last_name"),
			SuccessHint: "Ask the technician to select the new customer to continue.",
		}
		return builtinWithBackend(options, def, func(ctx context.Context, params map[string]interface{}, _ shop.Snapshot) (toolcore.Result, error) {
			in := shop.Customer{
				FirstName: toolcore.String(params, "first_name"),
				LastName:  toolcore.String(params, "last_name"),
				Phone:     toolcore.String(params, "phone"),
				Email:     toolcore.String(params, "email"),
				Address:   toolcore.String(params, "address"),
			}
			if in.FirstName == "" || in.LastName == "" {
				return toolcore.Failure("first_name and last_name must not be empty"), nil
			}
			created, err := options.Backend.CreateCustomer(ctx, in)
			if err != nil {
				return backendFailure("customer create", err)
			}
			return toolcore.Success(fmt.Sprintf("created customer %s (%s)", created.FullName(), created.ID), created), nil
		})
	})
}
