package types

// Period 同步数据的版本号，每确认一轮加一
type Period int64

const (
	PeriodZero = Period(0)
)

func (p Period) Update(delta int) Period {
	cur := int64(p)
	return Period(cur + int64(delta))
}

func (p Period) Int64() int64 {
	return int64(p)
}
