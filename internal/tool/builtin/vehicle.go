package builtin

import (
	"context"
	"fmt"

	"github.com/harunnryd/torque/internal/shop"
	toolcore "github.com/harunnryd/torque/internal/tool"
)

func init() {
	toolcore.RegisterBuiltin("manage_vehicle", func(options toolcore.BuiltinOptions) (toolcore.Builtin, error) {
		def := toolcore.Definition{
			Name:        "manage_vehicle",
			Description: "List, add, update or remove vehicles of the selected customer.",
			Parameters: schema(map[string]interface{}{
				"action":      enumProp("Operation to perform", "list", "create", "update", "delete"),
				"customer_id": prop("string", "Customer id; omit for the selected customer"),
				"vehicle_id":  prop("string", "Vehicle id for update or delete; omit for the selected vehicle"),
				"year":        prop("integer", "Model year"),
				"make":        prop("string", "Manufacturer"),
				"model":       prop("string", "Model name"),
				"vin":         prop("string", "Vehicle identification number"),
				"mileage":     prop("integer", "Odometer reading"),
				"color":       prop("string", "Exterior color"),
			}, "action"),
		}
		h := &vehicleHandler{options: options}
		return builtinWithBackend(options, def, h.handle)
	})
}

type vehicleHandler struct {
	options toolcore.BuiltinOptions
}

func (h *vehicleHandler) handle(ctx context.Context, params map[string]interface{}, snap shop.Snapshot) (toolcore.Result, error) {
	switch toolcore.String(params, "action") {
	case "list":
		return h.list(ctx, params, snap)
	case "create":
		return h.create(ctx, params, snap)
	case "update":
		return h.update(ctx, params, snap)
	case "delete":
		return h.delete(ctx, params, snap)
	default:
		return toolcore.Failure("action must be one of list, create, update, delete"), nil
	}
}

func (h *vehicleHandler) list(ctx context.Context, params map[string]interface{}, snap shop.Snapshot) (toolcore.Result, error) {
	customerID, err := selectedCustomerID(params, snap)
	if err != nil {
		return toolcore.Failure(err.Error()), nil
	}
	vehicles, err := h.options.Backend.ListVehicles(ctx, customerID)
	if err != nil {
		return backendFailure("vehicle list", err)
	}
	if len(vehicles) == 0 {
		return toolcore.NoResults("the customer has no vehicles on file"), nil
	}
	return toolcore.Success(fmt.Sprintf("found %s", plural(len(vehicles), "vehicle")), vehicles), nil
}

func (h *vehicleHandler) create(ctx context.Context, params map[string]interface{}, snap shop.Snapshot) (toolcore.Result, error) {
	customerID, err := selectedCustomerID(params, snap)
	if err != nil {
		return toolcore.Failure(err.Error()), nil
	}
	v := shop.Vehicle{CustomerID: customerID}
	applyVehicleFields(&v, params)
	if v.Make == "" || v.Model == "" {
		return toolcore.Failure("make and model are required to add a vehicle"), nil
	}
	created, err := h.options.Backend.CreateVehicle(ctx, v)
	if err != nil {
		return backendFailure("vehicle create", err)
	}
	return toolcore.Success(fmt.Sprintf("added %s (%s)", created.Describe(), created.ID), created), nil
}

func (h *vehicleHandler) update(ctx context.Context, params map[string]interface{}, snap shop.Snapshot) (toolcore.Result, error) {
	id, err := selectedVehicleID(params, snap)
	if err != nil {
		return toolcore.Failure(err.Error()), nil
	}
	v, res, ok := h.current(ctx, id, params, snap)
	if !ok {
		return res, nil
	}
	applyVehicleFields(&v, params)
	updated, err := h.options.Backend.UpdateVehicle(ctx, v)
	if err != nil {
		return backendFailure("vehicle update", err)
	}
	return toolcore.Success(fmt.Sprintf("updated %s", updated.Describe()), updated), nil
}

// current returns the stored record for id. The update is a full replacement, so
// fields the agent did not mention must come from the existing vehicle.
func (h *vehicleHandler) current(ctx context.Context, id string, params map[string]interface{}, snap shop.Snapshot) (shop.Vehicle, toolcore.Result, bool) {
	if snap.Vehicle != nil && snap.Vehicle.ID == id && toolcore.String(params, "customer_id") == "" {
		return *snap.Vehicle, toolcore.Result{}, true
	}
	customerID, err := selectedCustomerID(params, snap)
	if err != nil {
		return shop.Vehicle{}, toolcore.Failure("vehicle " + id + " is not selected; pass customer_id so its record can be loaded"), false
	}
	vehicles, err := h.options.Backend.ListVehicles(ctx, customerID)
	if err != nil {
		res, ferr := backendFailure("vehicle lookup", err)
		if ferr != nil {
			res = toolcore.Failure(ferr.Error())
		}
		return shop.Vehicle{}, res, false
	}
	for _, v := range vehicles {
		if v.ID == id {
			return v, toolcore.Result{}, true
		}
	}
	return shop.Vehicle{}, toolcore.Failure(fmt.Sprintf("vehicle %s is not on file for customer %s", id, customerID)), false
}

func (h *vehicleHandler) delete(ctx context.Context, params map[string]interface{}, snap shop.Snapshot) (toolcore.Result, error) {
	id, err := selectedVehicleID(params, snap)
	if err != nil {
		return toolcore.Failure(err.Error()), nil
	}
	if err := h.options.Backend.DeleteVehicle(ctx, id); err != nil {
		return backendFailure("vehicle delete", err)
	}
	return toolcore.Success(fmt.Sprintf("deleted vehicle %s", id), map[string]string{"vehicle_id": id}), nil
}

func applyVehicleFields(v *shop.Vehicle, params map[string]interface{}) {
	if year, ok := toolcore.Int(params, "year"); ok {
		v.Year = year
	}
	if mileage, ok := toolcore.Int(params, "mileage"); ok {
		v.Mileage = mileage
	}
	if s := toolcore.String(params, "make"); s != "" {
		v.Make = s
	}
	if s := toolcore.String(params, "model"); s != "" {
		v.Model = s
	}
	if s := toolcore.String(params, "vin"); s != "" {
		v.VIN = s
	}
	if s := toolcore.String(params, "color"); s != "" {
		v.Color = s
	}
}
