package kinds

import "github.com/JonMunkholm/inventory/internal/core"

// Tickets have no natural key: every row is a new ticket.
func registerTickets() {
	core.Register(core.ImportKind{
		Key:   "tickets",
		Label: "Tickets",
		Entity: core.EntityDef{
			Kind:       Tickets,
			Table:      "tickets",
			CodeColumn: "number",
		},
		Family: FamilyTicket,
		Columns: core.RowSchema{
			{Name: "number", Type: core.ColumnCode},
			{Name: "title", Type: core.ColumnText, Required: true},
			{Name: "description", Type: core.ColumnText},
			{Name: "reported_by", Type: core.ColumnText, Required: true},
			{Name: "priority", Type: core.ColumnText, Normalizer: NormalizeLabel},
			{Name: "equipment_plate", Type: core.ColumnText, Normalizer: NormalizeIdentifier},
			{Name: "opened_at", Type: core.ColumnDate},
		},
	})
}
