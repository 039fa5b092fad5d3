package model

// Account identifies a token holder on the ledger (staker wallet, vault, fee recipient).
type Account string

// Token identifies a mint on the ledger: the collateral mint or a claim-token mint.
type Token string

// Side is the half of the escrow a staker backs.
type Side string

const (
	SideProvider Side = "provider"
	SideUser     Side = "user"
)

// ParseSide maps a textual side to a Side.
func ParseSide(s string) (Side, bool) {
	switch Side(s) {
	case SideProvider:
		return SideProvider, true
	case SideUser:
		return SideUser, true
	default:
		return "", false
	}
}

// Valid reports whether s is one of the two sides.
func (s Side) Valid() bool {
	return s == SideProvider || s == SideUser
}

// Opposite returns the counterparty side.
func (s Side) Opposite() Side {
	if s == SideProvider {
		return SideUser
	}
	return SideProvider
}
