package privval

import (
	"fmt"
	"github.com/tendermint/tendermint/crypto"
	"github.com/tendermint/tendermint/crypto/ed25519"
	tmjson "github.com/tendermint/tendermint/libs/json"
	tmos "github.com/tendermint/tendermint/libs/os"
	"github.com/tendermint/tendermint/libs/tempfile"
	"io/ioutil"
	"roundbft/types"
)

//-------------------------------------------------------------------------------

// FilePVKey stores the immutable part of the agent key.
type FilePVKey struct {
	Address types.Address  `json:"address"`
	PubKey  crypto.PubKey  `json:"pub_key"`
	PrivKey crypto.PrivKey `json:"priv_key"`

	filePath string
}

// Save persists the FilePVKey to its filePath.
func (pvKey FilePVKey) Save() error {
	outFile := pvKey.filePath
	if outFile == "" {
		return fmt.Errorf("cannot save agent key: filePath not set")
	}

	jsonBytes, err := tmjson.MarshalIndent(pvKey, "", "  ")
	if err != nil {
		return err
	}
	return tempfile.WriteFileAtomic(outFile, jsonBytes, 0600)
}

//-------------------------------------------------------------------------------

// FilePV implements types.PrivAgent using a key persisted to disk.
type FilePV struct {
	Key FilePVKey
}

// NewFilePV generates a new agent from the given key and path.
func NewFilePV(privKey crypto.PrivKey, keyFilePath string) *FilePV {
	return &FilePV{
		Key: FilePVKey{
			Address:  types.GetAddress(privKey.PubKey()),
			PubKey:   privKey.PubKey(),
			PrivKey:  privKey,
			filePath: keyFilePath,
		},
	}
}

// GenFilePV generates a new agent with a random ed25519 key and sets the
// filePath, but does not call Save().
func GenFilePV(keyFilePath string) *FilePV {
	return NewFilePV(ed25519.GenPrivKey(), keyFilePath)
}

// GenFilePVWithSeed 根据种子确定性地生成私钥，测试和本地多节点模拟使用
func GenFilePVWithSeed(keyFilePath string, seed []byte) *FilePV {
	return NewFilePV(ed25519.GenPrivKeyFromSecret(seed), keyFilePath)
}

// LoadFilePV loads a FilePV from keyFilePath.
func LoadFilePV(keyFilePath string) (*FilePV, error) {
	keyJSONBytes, err := ioutil.ReadFile(keyFilePath)
	if err != nil {
		return nil, err
	}
	pvKey := FilePVKey{}
	if err := tmjson.Unmarshal(keyJSONBytes, &pvKey); err != nil {
		return nil, fmt.Errorf("error reading agent key from %v: %v", keyFilePath, err)
	}

	// overwrite pubkey and address for convenience
	pvKey.PubKey = pvKey.PrivKey.PubKey()
	pvKey.Address = types.GetAddress(pvKey.PubKey)
	pvKey.filePath = keyFilePath

	return &FilePV{
		Key: pvKey,
	}, nil
}

// LoadOrGenFilePV loads a FilePV from keyFilePath or else generates a new
// one and saves it there.
func LoadOrGenFilePV(keyFilePath string) (*FilePV, error) {
	if tmos.FileExists(keyFilePath) {
		return LoadFilePV(keyFilePath)
	}
	pv := GenFilePV(keyFilePath)
	if err := pv.Save(); err != nil {
		return nil, err
	}
	return pv, nil
}

// GetAddress implements types.PrivAgent.
func (pv *FilePV) GetAddress() types.Address {
	return pv.Key.Address
}

// GetPubKey implements types.PrivAgent.
func (pv *FilePV) GetPubKey() (crypto.PubKey, error) {
	return pv.Key.PubKey, nil
}

// SignBytes implements types.PrivAgent.
func (pv *FilePV) SignBytes(appID string, bz []byte) ([]byte, error) {
	sig, err := pv.Key.PrivKey.Sign(types.AgentSignBytes(appID, bz))
	if err != nil {
		return nil, fmt.Errorf("error signing payload: %v", err)
	}
	return sig, nil
}

// Save persists the FilePV to disk.
func (pv *FilePV) Save() error {
	return pv.Key.Save()
}

func (pv *FilePV) String() string {
	return fmt.Sprintf("PrivAgent{%v}", pv.GetAddress())
}
