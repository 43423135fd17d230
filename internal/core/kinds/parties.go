package kinds

import "github.com/JonMunkholm/inventory/internal/core"

// registerParties registers companies, persons and application users.
func registerParties() {
	core.Register(core.ImportKind{
		Key:   "companies",
		Label: "Companies",
		Entity: core.EntityDef{
			Kind:             Companies,
			Table:            "companies",
			CodeColumn:       "code",
			NaturalKeyColumn: "tax_id",
		},
		Family: FamilyCompany,
		Columns: core.RowSchema{
			{Name: "code", Type: core.ColumnCode},
			{Name: "name", Type: core.ColumnText, Required: true},
			{Name: "tax_id", Type: core.ColumnText, Required: true, Normalizer: NormalizeIdentifier},
			{Name: "email", Type: core.ColumnText, Normalizer: NormalizeEmail},
			{Name: "phone", Type: core.ColumnText},
			{Name: "address", Type: core.ColumnText},
		},
	})

	core.Register(core.ImportKind{
		Key:   "persons",
		Label: "Persons",
		Entity: core.EntityDef{
			Kind:             Persons,
			Table:            "persons",
			CodeColumn:       "code",
			NaturalKeyColumn: "document_number",
		},
		Family: FamilyPerson,
		Columns: core.RowSchema{
			{Name: "code", Type: core.ColumnCode},
			{Name: "full_name", Type: core.ColumnText, Required: true},
			{Name: "document_number", Type: core.ColumnText, Required: true, Normalizer: NormalizeIdentifier},
			{Name: "email", Type: core.ColumnText, Normalizer: NormalizeEmail},
			{Name: "phone", Type: core.ColumnText},
			{Name: "company_code", Type: core.ColumnText, Normalizer: NormalizeIdentifier},
		},
	})

	core.Register(core.ImportKind{
		Key:   "users",
		Label: "Users",
		Entity: core.EntityDef{
			Kind:             Users,
			Table:            "users",
			CodeColumn:       "code",
			NaturalKeyColumn: "email",
		},
		Family: FamilyUser,
		Columns: core.RowSchema{
			{Name: "code", Type: core.ColumnCode},
			{Name: "email", Type: core.ColumnText, Required: true, Normalizer: NormalizeEmail},
			{Name: "full_name", Type: core.ColumnText, Required: true},
			{Name: "role", Type: core.ColumnText, Normalizer: NormalizeLabel},
		},
	})
}
