package types

import (
	"bytes"
	"encoding/hex"
	"github.com/tendermint/tendermint/crypto"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
	"strings"
)

// Address 参与者身份，使用公钥派生的地址
type Address crypto.Address

func GetAddress(key crypto.PubKey) Address {
	return Address(key.Address())
}

// AddressFromHex 解析十六进制地址，允许带0x前缀
func AddressFromHex(s string) (Address, error) {
	bz, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	if err != nil {
		return nil, err
	}
	return Address(bz), nil
}

func (addr Address) Equal(other Address) bool {
	if addr == nil || other == nil {
		return false
	}
	return bytes.Equal(crypto.Address(addr), crypto.Address(other))
}

func (addr Address) IsEmpty() bool {
	return len(addr) == 0
}

func (addr Address) String() string {
	return tmbytes.HexBytes(addr).String()
}

func (addr Address) MarshalJSON() ([]byte, error) {
	return tmbytes.HexBytes(addr).MarshalJSON()
}

func (addr *Address) UnmarshalJSON(data []byte) error {
	var hb tmbytes.HexBytes
	if err := hb.UnmarshalJSON(data); err != nil {
		return err
	}
	*addr = Address(hb)
	return nil
}
