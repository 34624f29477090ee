package models

// PersonalScopeID is the persisted form of the implicit personal scope.
const PersonalScopeID = "personal"

// Scope selects the rows a read or write targets: the caller's implicit
// personal ledger, or a party-backed book. The zero value is Personal.
type Scope struct {
	partyID string
}

// PersonalScope returns the implicit personal scope.
func PersonalScope() Scope { return Scope{} }

// PartyScope returns the scope of the given party.
func PartyScope(id string) Scope { return Scope{partyID: id} }

// ParseScope reads the persisted form. Empty and "personal" are Personal.
func ParseScope(s string) Scope {
	if s == "" || s == PersonalScopeID {
		return PersonalScope()
	}
	return PartyScope(s)
}

func (s Scope) IsPersonal() bool { return s.partyID == "" }

// PartyID returns the party id and true for party scopes.
func (s Scope) PartyID() (string, bool) {
	return s.partyID, s.partyID != ""
}

// PartyIDPtr returns the value stored in party_id columns: nil for Personal.
func (s Scope) PartyIDPtr() *string {
	if s.partyID == "" {
		return nil
	}
	id := s.partyID
	return &id
}

func (s Scope) String() string {
	if s.partyID == "" {
		return PersonalScopeID
	}
	return s.partyID
}
