package store

import (
	"bytes"
	"fmt"
	jsoniter "github.com/json-iterator/go"
	"github.com/tendermint/tendermint/libs/log"
	tmdb "github.com/tendermint/tm-db"
	leveldb "github.com/tendermint/tm-db/goleveldb"
	cstypes "roundbft/consensus/types"
	"roundbft/state"
	"roundbft/types"
	"strconv"
	"sync"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	tableSnapshot   = "snapshot_"
	tableLatest     = "latest_period"
	tableRoundState = "round_state"
)

// NewKVStore 打开dir下名为name的goleveldb数据库
func NewKVStore(name, dir string, logger log.Logger) (*KVStore, error) {
	levelDB, err := leveldb.NewDB(name, dir)
	if err != nil {
		return nil, err
	}
	return NewKVStoreWithDB(levelDB, logger), nil
}

func NewKVStoreWithDB(kvdb tmdb.DB, logger log.Logger) *KVStore {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &KVStore{kvDB: kvdb, logger: logger}
}

// KVStore 保存同步数据快照和调度器检查点
// table definition：
// snapshot table: key=snapshot_{period}; value=json(SynchronizedData)
// latest table: key=latest_period; value=string(period)
// round state table: key=round_state; value=json(roundStateRecord)
type KVStore struct {
	mtx  sync.Mutex
	kvDB tmdb.DB

	logger log.Logger
}

type roundStateRecord struct {
	cstypes.RoundState
	Payload jsoniter.RawMessage `json:"payload,omitempty"`
}

// SaveSnapshot implements state.Store
func (kv *KVStore) SaveSnapshot(sd *state.SynchronizedData) error {
	bz, err := sd.MarshalJSON()
	if err != nil {
		return err
	}

	kv.mtx.Lock()
	defer kv.mtx.Unlock()

	batch := kv.kvDB.NewBatch()
	defer batch.Close()

	if err := batch.Set(genKey(tableSnapshot, sd.Period()), bz); err != nil {
		return err
	}
	latest, err := kv.latestPeriod()
	if err != nil {
		return err
	}
	if latest == nil || sd.Period() >= *latest {
		if err := batch.Set([]byte(tableLatest), int2byte(sd.Period().Int64())); err != nil {
			return err
		}
	}
	if err := batch.WriteSync(); err != nil {
		return err
	}
	kv.logger.Debug("snapshot saved", "period", sd.Period(), "round", sd.LastRound())
	return nil
}

// LoadSnapshot implements state.Store
func (kv *KVStore) LoadSnapshot(period types.Period) (*state.SynchronizedData, error) {
	kv.mtx.Lock()
	defer kv.mtx.Unlock()
	return kv.loadSnapshot(period)
}

func (kv *KVStore) loadSnapshot(period types.Period) (*state.SynchronizedData, error) {
	bz, err := kv.kvDB.Get(genKey(tableSnapshot, period))
	if err != nil {
		return nil, err
	}
	if bz == nil {
		return nil, nil
	}
	sd := &state.SynchronizedData{}
	if err := sd.UnmarshalJSON(bz); err != nil {
		return nil, fmt.Errorf("corrupted snapshot at period %v: %w", period, err)
	}
	return sd, nil
}

// LatestSnapshot implements state.Store
func (kv *KVStore) LatestSnapshot() (*state.SynchronizedData, error) {
	kv.mtx.Lock()
	defer kv.mtx.Unlock()

	latest, err := kv.latestPeriod()
	if err != nil || latest == nil {
		return nil, err
	}
	return kv.loadSnapshot(*latest)
}

func (kv *KVStore) latestPeriod() (*types.Period, error) {
	bz, err := kv.kvDB.Get([]byte(tableLatest))
	if err != nil {
		return nil, err
	}
	if bz == nil {
		return nil, nil
	}
	v, err := strconv.ParseInt(string(bz), 10, 64)
	if err != nil {
		return nil, err
	}
	p := types.Period(v)
	return &p, nil
}

// SaveRoundState 保存调度器检查点，payload单独编码
func (kv *KVStore) SaveRoundState(rs cstypes.RoundState) error {
	record := roundStateRecord{RoundState: rs}
	if rs.Payload != nil {
		bz, err := types.EncodePayload(rs.Payload)
		if err != nil {
			return err
		}
		record.Payload = bz
	}
	bz, err := json.Marshal(record)
	if err != nil {
		return err
	}

	kv.mtx.Lock()
	defer kv.mtx.Unlock()
	return kv.kvDB.SetSync([]byte(tableRoundState), bz)
}

// LoadRoundState 不存在时返回(nil, nil)
func (kv *KVStore) LoadRoundState() (*cstypes.RoundState, error) {
	kv.mtx.Lock()
	bz, err := kv.kvDB.Get([]byte(tableRoundState))
	kv.mtx.Unlock()
	if err != nil {
		return nil, err
	}
	if bz == nil {
		return nil, nil
	}

	record := roundStateRecord{}
	if err := json.Unmarshal(bz, &record); err != nil {
		return nil, err
	}
	rs := record.RoundState
	if len(record.Payload) > 0 {
		p, err := types.DecodePayload(record.Payload)
		if err != nil {
			return nil, err
		}
		rs.Payload = p
	}
	if !rs.Step.IsValid() {
		return nil, fmt.Errorf("corrupted round state: invalid step %v", rs.Step)
	}
	return &rs, nil
}

func (kv *KVStore) GetDB() tmdb.DB {
	return kv.kvDB
}

func (kv *KVStore) Close() error {
	return kv.kvDB.Close()
}

func genKey(table string, primaryKey interface{}) []byte {
	buffer := new(bytes.Buffer)
	buffer.WriteString(table)
	switch pk := primaryKey.(type) {
	case types.Period:
		// 固定宽度，迭代时按period有序
		buffer.WriteString(fmt.Sprintf("%020d", pk.Int64()))
	case int:
		buffer.WriteString(strconv.Itoa(pk))
	case string:
		buffer.WriteString(pk)
	case []byte:
		buffer.Write(pk)
	}
	return buffer.Bytes()
}

func int2byte(src int64) []byte {
	return []byte(strconv.FormatInt(src, 10))
}
