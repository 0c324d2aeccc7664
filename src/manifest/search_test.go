package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func names(tools []Tool) []string {
	out := make([]string, len(tools))
	for i, t := range tools {
		out[i] = t.Name
	}
	return out
}

func TestSearch(t *testing.T) {
	tools := []Tool{
		{Name: "ShipOrder", Description: "Ship a customer order", Tags: []string{"shipping"}},
		{Name: "CheckInventory", Description: "Units in stock for an item", Tags: []string{"inventory", "stock"}},
		{Name: "Restock", Description: "Add units to an item"},
	}

	assert.Equal(t, []string{"CheckInventory", "Restock"}, names(Search(tools, "how much stock for item M1?", 2)))
	assert.Equal(t, []string{"ShipOrder"}, names(Search(tools, "ship order 7", 1)))
	assert.Equal(t, []string{"ShipOrder", "CheckInventory"}, names(Search(tools, "weather", 2)), "no match falls back to the first tools")
	assert.Len(t, Search(tools, "weather", 0), 3)
	assert.Equal(t, []string{"CheckInventory"}, names(Search(tools, "stock", 0)))
	assert.Empty(t, Search(nil, "stock", 3))
}

func TestSplitIdent(t *testing.T) {
	assert.Equal(t, []string{"check", "inventory"}, splitIdent("CheckInventory"))
	assert.Equal(t, []string{"ship", "order"}, splitIdent("ship_order"))
	assert.Equal(t, []string{"inventory", "check"}, splitIdent("Inventory.Check"))
}
