package ta

import (
	"errors"
	"fmt"

	"github.com/markcheno/go-talib"
)

const (
	// MinHistoryLen 计算指标所需的最小收盘价数量 (MA20 / RSI14 预留安全长度)
	MinHistoryLen = 30

	maPeriod  = 20
	rsiPeriod = 14
)

// ErrHistoryTooShort 历史数据不足以计算指标
var ErrHistoryTooShort = errors.New("history too short")

// Stats 一个币种当前序列的统计摘要
type Stats struct {
	Samples   int     `json:"samples"`
	Last      float64 `json:"last"`
	ChangePct float64 `json:"changePct"` // 相对种子 K 线的涨跌幅 (%)
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	MA        float64 `json:"ma20"`
	RSI       float64 `json:"rsi14"`
}

// Summarize 基于收盘价序列计算统计值，序列按时间升序
func Summarize(closes []float64) (*Stats, error) {
	if len(closes) < MinHistoryLen {
		return nil, fmt.Errorf("%w: need %d closes, have %d", ErrHistoryTooShort, MinHistoryLen, len(closes))
	}

	first, last := closes[0], closes[len(closes)-1]
	st := &Stats{
		Samples: len(closes),
		Last:    last,
		High:    talib.Max(closes, len(closes))[len(closes)-1],
		Low:     talib.Min(closes, len(closes))[len(closes)-1],
	}
	// 种子价格为 0 时没有涨跌幅
	if first != 0 {
		st.ChangePct = (last - first) / first * 100
	}

	ma := talib.Sma(closes, maPeriod)
	st.MA = ma[len(ma)-1]

	rsi := talib.Rsi(closes, rsiPeriod)
	st.RSI = rsi[len(rsi)-1]

	return st, nil
}
