package wallet

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// IAddressIssuer hands out deposit addresses for a settlement asset/network.
type IAddressIssuer interface {
	IssueAddress(merchantID, cryptoCurrency, network string) (string, error)
}

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// AddressIssuer generates opaque per-merchant deposit addresses. Custody of
// the underlying keys lives with the wallet provider; this service only
// needs an address the payer can be shown.
type AddressIssuer struct{}

func NewAddressIssuer() *AddressIssuer {
	return &AddressIssuer{}
}

func (i *AddressIssuer) IssueAddress(merchantID, cryptoCurrency, network string) (string, error) {
	switch strings.ToUpper(network) {
	case "TRC20", "TRON":
		return i.randomAddress("T", 33)
	case "ERC20", "ETH", "ETHEREUM":
		return i.randomHexAddress()
	case "BTC", "BITCOIN":
		return i.randomAddress("bc1q", 38)
	default:
		return i.randomAddress("T", 33)
	}
}

func (i *AddressIssuer) randomAddress(prefix string, length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("address entropy unavailable: %w", err)
	}
	var b strings.Builder
	b.WriteString(prefix)
	for _, c := range buf {
		b.WriteByte(base58Alphabet[int(c)%len(base58Alphabet)])
	}
	return b.String(), nil
}

func (i *AddressIssuer) randomHexAddress() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("address entropy unavailable: %w", err)
	}
	return fmt.Sprintf("0x%x", buf), nil
}
