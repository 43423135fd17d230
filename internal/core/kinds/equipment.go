package kinds

import "github.com/JonMunkholm/inventory/internal/core"

func registerEquipment() {
	core.Register(core.ImportKind{
		Key:   "equipment",
		Label: "Equipment",
		Entity: core.EntityDef{
			Kind:             Equipment,
			Table:            "equipment",
			CodeColumn:       "plate_number",
			NaturalKeyColumn: "serial_number",
		},
		Family: FamilyPlate,
		Columns: core.RowSchema{
			{Name: "plate_number", Type: core.ColumnCode},
			{Name: "type", Type: core.ColumnText, Required: true, Normalizer: NormalizeLabel},
			{Name: "brand", Type: core.ColumnText},
			{Name: "model", Type: core.ColumnText},
			{Name: "serial_number", Type: core.ColumnText, Required: true, Normalizer: NormalizeIdentifier},
			{Name: "cost", Type: core.ColumnNumeric},
			{Name: "purchase_date", Type: core.ColumnDate},
			{Name: "location", Type: core.ColumnText},
			{Name: "status", Type: core.ColumnText, Normalizer: NormalizeLabel},
		},
	})
}
