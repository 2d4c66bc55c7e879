package models

// Session is the wallet connection held by one controller.
type Session struct {
	Connected bool   `json:"connected"`
	Address   string `json:"address,omitempty"`
	Provider  string `json:"provider,omitempty"` // display label, best effort
}

// AddressEntry is one address a wallet provider reports.
type AddressEntry struct {
	Address   string `json:"address"`
	PublicKey string `json:"public_key,omitempty"`
}

// AddressSet is the provider's stored address book, keyed by chain.
type AddressSet struct {
	STX []AddressEntry `json:"stx,omitempty"`
	BTC []AddressEntry `json:"btc,omitempty"`
}

// Primary returns the first asset-chain address, or "" when there is none.
func (a AddressSet) Primary() string {
	if len(a.STX) == 0 {
		return ""
	}
	return a.STX[0].Address
}
