package loadgen

// Item 是负载生成器推送的元素，Tag 由生产者和序号推导，用于检测篡改
type Item struct {
	Producer int
	Seq      int
	Tag      uint64
}

// NewItem 创建带校验标签的元素
func NewItem(producer, seq int) Item {
	return Item{Producer: producer, Seq: seq, Tag: Tag(producer, seq)}
}

// Valid 检查标签与生产者和序号是否一致
func (it Item) Valid() bool {
	return it.Tag == Tag(it.Producer, it.Seq)
}

// Tag 计算元素的校验标签（splitmix64）
func Tag(producer, seq int) uint64 {
	z := uint64(producer)<<32 | uint64(uint32(seq))
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
