// Package composer builds the instruction text published to the realtime session.
package composer

import (
	"fmt"
	"strings"

	"github.com/harunnryd/torque/internal/shop"
)

const (
	// NoCustomerSentinel replaces the customer block when nothing is selected.
	NoCustomerSentinel = "No customer is currently selected. Ask the technician to select or look up a customer before making changes."

	// NoCustomerGreeting is sent as the first item of a session without a customer.
	NoCustomerGreeting = "Hello! Please select a customer to begin."

	DefaultToolGuidance = "Use the provided tools for every lookup or change instead of guessing."

	toolGuidanceHeader = "## Tool usage"
	customerHeader     = "## Current customer"
	researchHeader     = "## Research context"
)

type Prompts struct {
	Base         string
	ToolGuidance string
}

// Compose concatenates, in order: base instructions, tool guidance, the customer and
// vehicle block (or NoCustomerSentinel) and the research block when present. A
// vehicle selected without a customer still follows the sentinel.
func Compose(p Prompts, snap shop.Snapshot) string {
	var b strings.Builder

	if base := strings.TrimSpace(p.Base); base != "" {
		b.WriteString(base)
		b.WriteString("\n\n")
	}

	guidance := strings.TrimSpace(p.ToolGuidance)
	if guidance == "" {
		guidance = DefaultToolGuidance
	}
	b.WriteString(toolGuidanceHeader)
	b.WriteString("\n")
	b.WriteString(guidance)
	b.WriteString("\n\n")

	b.WriteString(customerHeader)
	b.WriteString("\n")
	if snap.Customer == nil {
		b.WriteString(NoCustomerSentinel)
		b.WriteString("\n")
		if snap.Vehicle != nil {
			writeVehicle(&b, *snap.Vehicle)
		}
	} else {
		writeCustomer(&b, *snap.Customer)
		if snap.Vehicle != nil {
			writeVehicle(&b, *snap.Vehicle)
		} else {
			b.WriteString("Vehicle: none selected\n")
		}
	}

	if r := snap.Research; r != nil && (strings.TrimSpace(r.Problem) != "" || len(r.Findings) > 0) {
		b.WriteString("\n")
		b.WriteString(researchHeader)
		b.WriteString("\n")
		if problem := strings.TrimSpace(r.Problem); problem != "" {
			fmt.Fprintf(&b, "Problem: %s\n", problem)
		}
		if len(r.Findings) > 0 {
			b.WriteString("Findings:\n")
			for _, f := range r.Findings {
				if f = strings.TrimSpace(f); f != "" {
					fmt.Fprintf(&b, "- %s\n", f)
				}
			}
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeCustomer(b *strings.Builder, c shop.Customer) {
	fmt.Fprintf(b, "Name: %s\n", c.FullName())
	if c.ID != "" {
		fmt.Fprintf(b, "Customer ID: %s\n", c.ID)
	}
	if c.Phone != "" {
		fmt.Fprintf(b, "Phone: %s\n", c.Phone)
	}
	if c.Email != "" {
		fmt.Fprintf(b, "Email: %s\n", c.Email)
	}
}

func writeVehicle(b *strings.Builder, v shop.Vehicle) {
	if desc := v.Describe(); desc != "" {
		fmt.Fprintf(b, "Vehicle: %s\n", desc)
	}
	if v.ID != "" {
		fmt.Fprintf(b, "Vehicle ID: %s\n", v.ID)
	}
	if v.VIN != "" {
		fmt.Fprintf(b, "VIN: %s\n", v.VIN)
	}
}

// Greeting is the synthesized opening line for a freshly connected session.
func Greeting(snap shop.Snapshot) string {
	if snap.Customer == nil {
		return NoCustomerGreeting
	}

	name := snap.Customer.FullName()
	if snap.Vehicle != nil {
		if desc := snap.Vehicle.Describe(); desc != "" {
			return fmt.Sprintf("Hello! I'm working with %s on their %s. How can I help?", name, desc)
		}
	}
	return fmt.Sprintf("Hello! I'm working with %s. How can I help?", name)
}
