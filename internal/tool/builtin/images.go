package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/harunnryd/torque/internal/shop"
	toolcore "github.com/harunnryd/torque/internal/tool"
)

const imagesDisplayedHint = "The images are already displayed to the technician. Describe what they show instead of listing links."

func init() {
	toolcore.RegisterBuiltin("search_images", func(options toolcore.BuiltinOptions) (toolcore.Builtin, error) {
		def := toolcore.Definition{
			Name:        "search_images",
			Description: "Find reference images such as part diagrams or component locations. The selected vehicle is added to the query.",
			Parameters: schema(map[string]interface{}{
				"query": prop("string", "What to look for, e.g. 'serpentine belt routing'"),
				"limit": prop("integer", "Maximum number of images"),
			}, "query"),
			SuccessHint: imagesDisplayedHint,
		}
		return builtinWithBackend(options, def, func(ctx context.Context, params map[string]interface{}, snap shop.Snapshot) (toolcore.Result, error) {
			query := imageQuery(toolcore.String(params, "query"), snap)
			limit := options.ImageLimit
			if n, ok := toolcore.Int(params, "limit"); ok && n > 0 && n < limit {
				limit = n
			}
			images, err := options.Backend.SearchImages(ctx, query, limit)
			if err != nil {
				return backendFailure("image search", err)
			}
			if len(images) == 0 {
				return toolcore.NoResults(fmt.Sprintf("no images found for %q", query)), nil
			}
			if len(images) > limit {
				images = images[:limit]
			}
			return toolcore.Success(fmt.Sprintf("showing %s for %q", plural(len(images), "image"), query), images), nil
		})
	})

	toolcore.RegisterBuiltin("manage_image", func(options toolcore.BuiltinOptions) (toolcore.Builtin, error) {
		def := toolcore.Definition{
			Name:        "manage_image",
			Description: "Save an image to the selected customer's record or delete a saved image.",
			Parameters: schema(map[string]interface{}{
				"action":   enumProp("Operation to perform", "save", "delete"),
				"url":      prop("string", "Image URL to save"),
				"title":    prop("string", "Caption for the saved image"),
				"image_id": prop("string", "Saved image id to delete"),
			}, "action"),
		}
		return builtinWithBackend(options, def, func(ctx context.Context, params map[string]interface{}, snap shop.Snapshot) (toolcore.Result, error) {
			switch toolcore.String(params, "action") {
			case "save":
				if !snap.HasCustomer() {
					return toolcore.Failure("select a customer before saving images"), nil
				}
				url, err := toolcore.RequireString(params, "url")
				if err != nil {
					return toolcore.Failure(err.Error()), nil
				}
				img := shop.Image{
					URL:        url,
					Title:      toolcore.String(params, "title"),
					CustomerID: snap.Customer.ID,
				}
				if snap.Vehicle != nil {
					img.VehicleID = snap.Vehicle.ID
				}
				saved, err := options.Backend.SaveImage(ctx, img)
				if err != nil {
					return backendFailure("image save", err)
				}
				return toolcore.Success("image saved", saved), nil
			case "delete":
				id, err := toolcore.RequireString(params, "image_id")
				if err != nil {
					return toolcore.Failure(err.Error()), nil
				}
				if err := options.Backend.DeleteImage(ctx, id); err != nil {
					return backendFailure("image delete", err)
				}
				return toolcore.Success(fmt.Sprintf("deleted image %s", id), map[string]string{"image_id": id}), nil
			}
			return toolcore.Failure("action must be save or delete"), nil
		})
	})
}

// imageQuery prefixes the selected vehicle unless the query already names its make.
func imageQuery(query string, snap shop.Snapshot) string {
	if snap.Vehicle == nil {
		return query
	}
	desc := snap.Vehicle.Describe()
	if desc == "" || (snap.Vehicle.Make != "" && strings.Contains(strings.ToLower(query), strings.ToLower(snap.Vehicle.Make))) {
		return query
	}
	return desc + " " + query
}
