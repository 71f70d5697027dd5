package shop

import (
	"fmt"
	"strings"
	"time"
)

type Customer struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// FullName joins first and last name, skipping empty parts.
func (c Customer) FullName() string {
	return strings.TrimSpace(strings.Join(nonEmpty(c.FirstName, c.LastName), " "))
}

type Vehicle struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	Year       int    `json:"year,omitempty"`
	Make       string `json:"make,omitempty"`
	Model      string `json:"model,omitempty"`
	VIN        string `json:"vin,omitempty"`
	Mileage    int    `json:"mileage,omitempty"`
	Color      string `json:"color,omitempty"`
}

// Describe renders "Year Make Model", e.g. "2020 Honda Civic".
func (v Vehicle) Describe() string {
	parts := make([]string, 0, 3)
	if v.Year > 0 {
		parts = append(parts, fmt.Sprintf("%d", v.Year))
	}
	return strings.Join(append(parts, nonEmpty(v.Make, v.Model)...), " ")
}

type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

type Invoice struct {
	ID         string     `json:"id"`
	CustomerID string     `json:"customer_id"`
	VehicleID  string     `json:"vehicle_id,omitempty"`
	Status     string     `json:"status,omitempty"`
	Items      []LineItem `json:"items,omitempty"`
	Total      float64    `json:"total"`
	CreatedAt  time.Time  `json:"created_at,omitempty"`
}

type Note struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	VehicleID  string    `json:"vehicle_id,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

type Image struct {
	ID         string `json:"id,omitempty"`
	URL        string `json:"url"`
	Title      string `json:"title,omitempty"`
	Thumbnail  string `json:"thumbnail,omitempty"`
	Source     string `json:"source,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	VehicleID  string `json:"vehicle_id,omitempty"`
}

type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Source    string    `json:"source,omitempty"`
	Message   string    `json:"message"`
}

// DiagnosticResult is the forum analysis of a trouble code for one vehicle.
type DiagnosticResult struct {
	Code         string   `json:"code"`
	Summary      string   `json:"summary"`
	CommonCauses []string `json:"common_causes,omitempty"`
	Fixes        []string `json:"fixes,omitempty"`
	Sources      []string `json:"sources,omitempty"`
}

// Research is the problem under investigation plus what has been learned so far.
type Research struct {
	Problem  string   `json:"problem"`
	Findings []string `json:"findings,omitempty"`
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
