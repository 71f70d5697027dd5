package builtin

import (
	"context"
	"fmt"

	"github.com/harunnryd/torque/internal/shop"
	toolcore "github.com/harunnryd/torque/internal/tool"
)

func init() {
	toolcore.RegisterBuiltin("manage_notes", func(options toolcore.BuiltinOptions) (toolcore.Builtin, error) {
		def := toolcore.Definition{
			Name:        "manage_notes",
			Description: "Read, search, write or remove notes about the selected customer and vehicle.",
			Parameters: schema(map[string]interface{}{
				"action":      enumProp("Operation to perform", "list", "search", "create", "update", "delete"),
				"customer_id": prop("string", "Customer id; omit for the selected customer"),
				"note_id":     prop("string", "Note id for update or delete"),
				"content":     prop("string", "Note text for create or update"),
				"query":       prop("string", "Search text"),
			}, "action"),
		}
		backend := options.Backend
		return builtinWithBackend(options, def, func(ctx context.Context, params map[string]interface{}, snap shop.Snapshot) (toolcore.Result, error) {
			action := toolcore.String(params, "action")
			switch action {
			case "list", "search":
				customerID, err := selectedCustomerID(params, snap)
				if err != nil {
					return toolcore.Failure(err.Error()), nil
				}
				var notes []shop.Note
				if action == "search" {
					query, qerr := toolcore.RequireString(params, "query")
					if qerr != nil {
						return toolcore.Failure(qerr.Error()), nil
					}
					notes, err = backend.SearchNotes(ctx, customerID, query)
				} else {
					notes, err = backend.ListNotes(ctx, customerID)
				}
				if err != nil {
					return backendFailure("note "+action, err)
				}
				if len(notes) == 0 {
					return toolcore.NoResults("no notes found"), nil
				}
				return toolcore.Success(fmt.Sprintf("found %s", plural(len(notes), "note")), notes), nil

			case "create":
				customerID, err := selectedCustomerID(params, snap)
				if err != nil {
					return toolcore.Failure(err.Error()), nil
				}
				content, err := toolcore.RequireString(params, "content")
				if err != nil {
					return toolcore.Failure(err.Error()), nil
				}
				note := shop.Note{CustomerID: customerID, Content: content}
				if snap.Vehicle != nil && snap.Vehicle.CustomerID == customerID {
					note.VehicleID = snap.Vehicle.ID
				}
				created, err := backend.CreateNote(ctx, note)
				if err != nil {
					return backendFailure("note create", err)
				}
				return toolcore.Success("note saved", created), nil

			case "update":
				id, err := toolcore.RequireString(params, "note_id")
				if err != nil {
					return toolcore.Failure(err.Error()), nil
				}
				content, err := toolcore.RequireString(params, "content")
				if err != nil {
					return toolcore.Failure(err.Error()), nil
				}
				updated, err := backend.UpdateNote(ctx, shop.Note{ID: id, Content: content})
				if err != nil {
					return backendFailure("note update", err)
				}
				return toolcore.Success("note updated", updated), nil

			case "delete":
				id, err := toolcore.RequireString(params, "note_id")
				if err != nil {
					return toolcore.Failure(err.Error()), nil
				}
				if err := backend.DeleteNote(ctx, id); err != nil {
					return backendFailure("note delete", err)
				}
				return toolcore.Success(fmt.Sprintf("deleted note %s", id), map[string]string{"note_id": id}), nil
			}
			return toolcore.Failure("action must be one of list, search, create, update, delete"), nil
		})
	})
}
