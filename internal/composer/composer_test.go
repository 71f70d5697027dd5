package composer

import (
	"strings"
	"testing"

	"github.com/harunnryd/torque/internal/shop"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

var testPrompts = Prompts{Base: "You are the shop assistant.", ToolGuidance: "Always call tools."}

func TestComposeWithoutCustomer(t *testing.T) {
	out := Compose(testPrompts, shop.Snapshot{})

	assert.True(t, strings.HasPrefix(out, "You are the shop assistant."))
	assert.Contains(t, out, "Always call tools.")
	assert.Contains(t, out, NoCustomerSentinel)
	assert.NotContains(t, out, researchHeader)
}

func TestComposeOrder(t *testing.T) {
	snap := shop.Snapshot{
		Customer: &shop.Customer{ID: "c1", FirstName: "Jane", LastName: "Doe", Phone: "555-0100", Email: "jane@example.com"},
		Vehicle:  &shop.Vehicle{ID: "v1", Year: 2020, Make: "Honda", Model: "Civic", VIN: "1HGCV1F30LA000001"},
		Research: &shop.Research{Problem: "P0301 misfire", Findings: []string{"coil pack on cylinder 1"}},
	}
	out := Compose(testPrompts, snap)

	base := strings.Index(out, "You are the shop assistant.")
	guidance := strings.Index(out, "Always call tools.")
	customer := strings.Index(out, "Jane Doe")
	research := strings.Index(out, "P0301 misfire")
	assert.True(t, base < guidance && guidance < customer && customer < research, out)

	assert.Contains(t, out, "555-0100")
	assert.Contains(t, out, "jane@example.com")
	assert.Contains(t, out, "2020 Honda Civic")
	assert.Contains(t, out, "1HGCV1F30LA000001")
	assert.Contains(t, out, "- coil pack on cylinder 1")
	assert.NotContains(t, out, NoCustomerSentinel)
}

func TestComposeVehicleWithoutCustomer(t *testing.T) {
	snap := shop.Snapshot{Vehicle: &shop.Vehicle{ID: "v7", Year: 2018, Make: "Ford", Model: "Transit", VIN: "1FTYR2CM0JKA00001"}}
	out := Compose(testPrompts, snap)

	sentinel := strings.Index(out, NoCustomerSentinel)
	vehicle := strings.Index(out, "Vehicle: 2018 Ford Transit")
	assert.True(t, sentinel >= 0 && vehicle > sentinel, out)
	assert.Contains(t, out, "Vehicle ID: v7")
	assert.Contains(t, out, "VIN: 1FTYR2CM0JKA00001")
	assert.NotContains(t, out, "Vehicle: none selected")
}

func TestComposeFallsBackToDefaultGuidance(t *testing.T) {
	out := Compose(Prompts{}, shop.Snapshot{})
	assert.Contains(t, out, DefaultToolGuidance)
}

func TestComposeSentinelIffNoCustomer(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		snap := shop.Snapshot{}
		if rapid.Bool().Draw(t, "customer") {
			snap.Customer = &shop.Customer{FirstName: rapid.StringMatching(`[A-Z][a-z]{1,8}`).Draw(t, "first")}
		}
		if rapid.Bool().Draw(t, "research") {
			snap.Research = &shop.Research{Problem: rapid.StringMatching(`[a-z ]{0,20}`).Draw(t, "problem")}
		}
		guidance := rapid.StringMatching(`[a-z ]{0,30}`).Draw(t, "guidance")

		out := Compose(Prompts{Base: "base", ToolGuidance: guidance}, snap)
		if !strings.Contains(out, toolGuidanceHeader) {
			t.Fatalf("tool guidance block missing: %q", out)
		}
		if strings.Contains(out, NoCustomerSentinel) != (snap.Customer == nil) {
			t.Fatalf("sentinel presence mismatch (customer=%v): %q", snap.Customer != nil, out)
		}
	})
}

func TestGreeting(t *testing.T) {
	assert.Equal(t, "Hello! Please select a customer to begin.", Greeting(shop.Snapshot{}))

	snap := shop.Snapshot{
		Customer: &shop.Customer{FirstName: "Jane", LastName: "Doe"},
		Vehicle:  &shop.Vehicle{Year: 2020, Make: "Honda", Model: "Civic"},
	}
	got := Greeting(snap)
	assert.Contains(t, got, "Jane Doe")
	assert.Contains(t, got, "2020 Honda Civic")

	snap.Vehicle = nil
	assert.Contains(t, Greeting(snap), "Jane Doe")
}
