// Package backend is the REST collaborator behind the shop tools.
package backend

import (
	"context"
	"time"

	"github.com/harunnryd/torque/internal/shop"
)

// API is everything the shop tools need from the backend.
type API interface {
	SearchCustomers(ctx context.Context, query string) ([]shop.Customer, error)
	GetCustomer(ctx context.Context, id string) (*shop.Customer, error)
	CreateCustomer(ctx context.Context, c shop.Customer) (*shop.Customer, error)

	ListVehicles(ctx context.Context, customerID string) ([]shop.Vehicle, error)
	CreateVehicle(ctx context.Context, v shop.Vehicle) (*shop.Vehicle, error)
	UpdateVehicle(ctx context.Context, v shop.Vehicle) (*shop.Vehicle, error)
	DeleteVehicle(ctx context.Context, id string) error

	ListInvoices(ctx context.Context, customerID string) ([]shop.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*shop.Invoice, error)
	CreateInvoice(ctx context.Context, inv shop.Invoice) (*shop.Invoice, error)
	UpdateInvoice(ctx context.Context, inv shop.Invoice) (*shop.Invoice, error)
	DeleteInvoice(ctx context.Context, id string) error

	ListNotes(ctx context.Context, customerID string) ([]shop.Note, error)
	SearchNotes(ctx context.Context, customerID, query string) ([]shop.Note, error)
	CreateNote(ctx context.Context, n shop.Note) (*shop.Note, error)
	UpdateNote(ctx context.Context, n shop.Note) (*shop.Note, error)
	DeleteNote(ctx context.Context, id string) error

	SearchImages(ctx context.Context, query string, limit int) ([]shop.Image, error)
	SaveImage(ctx context.Context, img shop.Image) (*shop.Image, error)
	DeleteImage(ctx context.Context, id string) error

	QueryLogs(ctx context.Context, q LogQuery) ([]shop.LogEntry, error)

	LookupDiagnosticCode(ctx context.Context, code string, v shop.Vehicle) (*shop.DiagnosticResult, error)
}

type LogQuery struct {
	Level    string
	Contains string
	Since    time.Time
	Limit    int
}
