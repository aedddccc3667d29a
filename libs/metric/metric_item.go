package metric

// MetricItem - 一个独立的metric模块对应一个MetricItem
// 通过rpc的metrics接口以JSON输出
type MetricItem interface {
	JSONString() string
}

// FuncItem 用函数实现MetricItem，适合导出已有的状态快照
type FuncItem func() string

func (f FuncItem) JSONString() string {
	return f()
}
