package model

import "sort"

// Sample 代表一个合成时间桶内的 K 线数据 (OHLC)
// JSON 字段与前端图表库的 setData 格式一致
type Sample struct {
	Time  int64   `json:"time"` // 合成时间，秒级时间戳
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// Valid 检查 low <= open, close <= high
func (s Sample) Valid() bool {
	return s.Low <= s.Open && s.Low <= s.Close && s.Open <= s.High && s.Close <= s.High
}

// Series 按时间升序排列的 K 线序列，只追加或替换，不裁剪
type Series struct {
	samples []Sample
}

// NewSeries 用一根种子 K 线创建序列
func NewSeries(seed Sample) *Series {
	return &Series{samples: []Sample{seed}}
}

// Insert 丢弃所有 time >= s.Time 的旧数据，追加 s，再按时间升序排序
func (sr *Series) Insert(s Sample) {
	kept := sr.samples[:0]
	for _, existing := range sr.samples {
		if existing.Time < s.Time {
			kept = append(kept, existing)
		}
	}
	sr.samples = append(kept, s)

	sort.SliceStable(sr.samples, func(i, j int) bool {
		return sr.samples[i].Time < sr.samples[j].Time
	})
}

// Last 返回最新的一根 K 线
func (sr *Series) Last() Sample {
	return sr.samples[len(sr.samples)-1]
}

// Len 返回 K 线数量
func (sr *Series) Len() int {
	return len(sr.samples)
}

// Snapshot 返回序列的副本，供渲染使用，防止外部修改
func (sr *Series) Snapshot() []Sample {
	out := make([]Sample, len(sr.samples))
	copy(out, sr.samples)
	return out
}

// Closes 返回收盘价序列
func (sr *Series) Closes() []float64 {
	out := make([]float64, len(sr.samples))
	for i, s := range sr.samples {
		out[i] = s.Close
	}
	return out
}
