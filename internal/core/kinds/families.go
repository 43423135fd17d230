package kinds

import "github.com/JonMunkholm/inventory/internal/core"

// Family names.
const (
	FamilyPlate   = "plate"
	FamilyCompany = "company"
	FamilyPerson  = "person"
	FamilyUser    = "user"
	FamilyTicket  = "ticket"
)

// Entity kinds.
const (
	Equipment core.EntityKind = "equipment"
	Companies core.EntityKind = "companies"
	Persons   core.EntityKind = "persons"
	Users     core.EntityKind = "users"
	Tickets   core.EntityKind = "tickets"
)

func init() {
	registerFamilies()
	registerEquipment()
	registerParties()
	registerTickets()
}

func registerFamilies() {
	// Plate numbers start at IT-000000; every other family skips the all-zero code.
	core.RegisterFamily(core.CodeFamily{
		Name: FamilyPlate, Kind: Equipment, Prefix: "IT-", Width: 6,
		Alphabet: core.AlphabetBase36, Start: 0,
	})
	core.RegisterFamily(core.CodeFamily{
		Name: FamilyCompany, Kind: Companies, Prefix: "CO", Width: 3,
		Alphabet: core.AlphabetBase36, Start: 1,
	})
	core.RegisterFamily(core.CodeFamily{
		Name: FamilyPerson, Kind: Persons, Prefix: "PE", Width: 5,
		Alphabet: core.AlphabetBase36, Start: 1,
	})
	core.RegisterFamily(core.CodeFamily{
		Name: FamilyUser, Kind: Users, Prefix: "USR-", Width: 4,
		Alphabet: core.AlphabetBase36, Start: 1,
	})
	core.RegisterFamily(core.CodeFamily{
		Name: FamilyTicket, Kind: Tickets, Prefix: "TK-", Width: 6,
		Alphabet: core.AlphabetDecimal, Start: 1,
	})
}
