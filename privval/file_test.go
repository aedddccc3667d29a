package privval

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io/ioutil"
	"os"
	"path/filepath"
	"roundbft/types"
	"testing"
)

func TestGenAndLoadFilePV(t *testing.T) {
	dir, err := ioutil.TempDir("", "privval_test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	keyFile := filepath.Join(dir, "agent_key.json")
	pv, err := LoadOrGenFilePV(keyFile)
	require.NoError(t, err)

	loaded, err := LoadFilePV(keyFile)
	require.NoError(t, err)
	assert.True(t, pv.GetAddress().Equal(loaded.GetAddress()))

	again, err := LoadOrGenFilePV(keyFile)
	require.NoError(t, err)
	assert.True(t, pv.GetAddress().Equal(again.GetAddress()))
}

func TestSignBytes(t *testing.T) {
	pv := GenFilePVWithSeed("", []byte("agent-0"))
	same := GenFilePVWithSeed("", []byte("agent-0"))
	assert.True(t, pv.GetAddress().Equal(same.GetAddress()))

	msg := []byte(`{"kind":"x"}`)
	sig, err := pv.SignBytes("app", msg)
	require.NoError(t, err)

	pub, err := pv.GetPubKey()
	require.NoError(t, err)
	assert.True(t, pub.VerifySignature(types.AgentSignBytes("app", msg), sig))
	assert.False(t, pub.VerifySignature(types.AgentSignBytes("other", msg), sig))

	assert.Error(t, pv.Save())
}

func TestLoadMissingFilePV(t *testing.T) {
	_, err := LoadFilePV(filepath.Join(os.TempDir(), "roundbft-missing-key.json"))
	assert.Error(t, err)
}
