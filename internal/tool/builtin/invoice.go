package builtin

import (
	"context"
	"fmt"
	"math"

	"github.com/harunnryd/torque/internal/shop"
	toolcore "github.com/harunnryd/torque/internal/tool"
)

var invoiceStatuses = []string{"draft", "open", "paid", "void"}

func init() {
	toolcore.RegisterBuiltin("manage_invoice", func(options toolcore.BuiltinOptions) (toolcore.Builtin, error) {
		lineItem := map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"description": prop("string", "Part or labor description"),
				"quantity":    prop("number", "Quantity or hours"),
				"unit_price":  prop("number", "Price per unit"),
			},
			"required": []string{"description", "quantity", "unit_price"},
		}
		def := toolcore.Definition{
			Name:        "manage_invoice",
			Description: "List, read, create, update or delete invoices for the selected customer.",
			Parameters: schema(map[string]interface{}{
				"action":      enumProp("Operation to perform", "list", "get", "create", "update", "delete"),
				"customer_id": prop("string", "Customer id; omit for the selected customer"),
				"invoice_id":  prop("string", "Invoice id for get, update or delete"),
				"status":      enumProp("Invoice status", invoiceStatuses...),
				"items": map[string]interface{}{
					"type":        "array",
					"description": "Line items; replaces existing items on update",
					"items":       lineItem,
				},
			}, "action"),
		}
		h := &invoiceHandler{options: options}
		return builtinWithBackend(options, def, h.handle)
	})
}

type invoiceHandler struct {
	options toolcore.BuiltinOptions
}

func (h *invoiceHandler) handle(ctx context.Context, params map[string]interface{}, snap shop.Snapshot) (toolcore.Result, error) {
	switch toolcore.String(params, "action") {
	case "list":
		customerID, err := selectedCustomerID(params, snap)
		if err != nil {
			return toolcore.Failure(err.Error()), nil
		}
		invoices, err := h.options.Backend.ListInvoices(ctx, customerID)
		if err != nil {
			return backendFailure("invoice list", err)
		}
		if len(invoices) == 0 {
			return toolcore.NoResults("the customer has no invoices"), nil
		}
		return toolcore.Success(fmt.Sprintf("found %s", plural(len(invoices), "invoice")), invoices), nil

	case "get":
		id, err := toolcore.RequireString(params, "invoice_id")
		if err != nil {
			return toolcore.Failure(err.Error()), nil
		}
		inv, err := h.options.Backend.GetInvoice(ctx, id)
		if err != nil {
			return backendFailure("invoice lookup", err)
		}
		return toolcore.Success(fmt.Sprintf("invoice %s totals %.2f", inv.ID, inv.Total), inv), nil

	case "create":
		return h.create(ctx, params, snap)

	case "update":
		return h.update(ctx, params)

	case "delete":
		id, err := toolcore.RequireString(params, "invoice_id")
		if err != nil {
			return toolcore.Failure(err.Error()), nil
		}
		if err := h.options.Backend.DeleteInvoice(ctx, id); err != nil {
			return backendFailure("invoice delete", err)
		}
		return toolcore.Success(fmt.Sprintf("deleted invoice %s", id), map[string]string{"invoice_id": id}), nil

	default:
		return toolcore.Failure("action must be one of list, get, create, update, delete"), nil
	}
}

func (h *invoiceHandler) create(ctx context.Context, params map[string]interface{}, snap shop.Snapshot) (toolcore.Result, error) {
	customerID, err := selectedCustomerID(params, snap)
	if err != nil {
		return toolcore.Failure(err.Error()), nil
	}
	items := lineItems(params)
	if len(items) == 0 {
		return toolcore.Failure("an invoice needs at least one line item"), nil
	}
	inv := shop.Invoice{
		CustomerID: customerID,
		Status:     toolcore.String(params, "status"),
		Items:      items,
		Total:      invoiceTotal(items),
	}
	if inv.Status == "" {
		inv.Status = "draft"
	}
	if snap.Vehicle != nil && snap.Vehicle.CustomerID == customerID {
		inv.VehicleID = snap.Vehicle.ID
	}
	created, err := h.options.Backend.CreateInvoice(ctx, inv)
	if err != nil {
		return backendFailure("invoice create", err)
	}
	return toolcore.Success(fmt.Sprintf("created invoice %s for %.2f", created.ID, created.Total), created), nil
}

func (h *invoiceHandler) update(ctx context.Context, params map[string]interface{}) (toolcore.Result, error) {
	id, err := toolcore.RequireString(params, "invoice_id")
	if err != nil {
		return toolcore.Failure(err.Error()), nil
	}
	inv, err := h.options.Backend.GetInvoice(ctx, id)
	if err != nil {
		return backendFailure("invoice lookup", err)
	}
	if status := toolcore.String(params, "status"); status != "" {
		inv.Status = status
	}
	if items := lineItems(params); len(items) > 0 {
		inv.Items = items
		inv.Total = invoiceTotal(items)
	}
	updated, err := h.options.Backend.UpdateInvoice(ctx, *inv)
	if err != nil {
		return backendFailure("invoice update", err)
	}
	return toolcore.Success(fmt.Sprintf("updated invoice %s", updated.ID), updated), nil
}

func lineItems(params map[string]interface{}) []shop.LineItem {
	raw := toolcore.Objects(params, "items")
	items := make([]shop.LineItem, 0, len(raw))
	for _, obj := range raw {
		item := shop.LineItem{Description: toolcore.String(obj, "description")}
		item.Quantity, _ = toolcore.Float(obj, "quantity")
		item.UnitPrice, _ = toolcore.Float(obj, "unit_price")
		if item.Description == "" || item.Quantity <= 0 {
			continue
		}
		items = append(items, item)
	}
	return items
}

// invoiceTotal is rounded to cents.
func invoiceTotal(items []shop.LineItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Quantity * item.UnitPrice
	}
	return math.Round(total*100) / 100
}
