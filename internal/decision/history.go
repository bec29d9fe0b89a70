package decision

import (
	"errors"
	"fmt"
	"time"

	"autotrader/internal/types"
)

// ErrOutOfOrder 表示决策时间未严格递增。
var ErrOutOfOrder = errors.New("decision timestamp out of order")

type Outcome string

const (
	OutcomeAccepted Outcome = "ACCEPTED"
	OutcomeRejected Outcome = "REJECTED"
	// OutcomeFailed 表示通过风控但执行失败。
	OutcomeFailed Outcome = "FAILED"
)

type Record struct {
	Decision Decision     `json:"decision"`
	Outcome  Outcome      `json:"outcome"`
	Reason   string       `json:"reason,omitempty"`
	Order    *types.Order `json:"order,omitempty"`
}

// History 是按时间严格递增的滚动决策记录。
// 最近一次 ACCEPTED 单独保存，淘汰旧记录不会影响最小间隔判断。
type History struct {
	limit        int
	records      []Record
	lastAccepted *Record
}

// NewHistory limit<=0 表示不限长度。
func NewHistory(limit int) *History {
	return &History{limit: limit}
}

func (h *History) Append(rec Record) error {
	if n := len(h.records); n > 0 {
		last := h.records[n-1].Decision.Timestamp
		if !rec.Decision.Timestamp.After(last) {
			return fmt.Errorf("%w: %s is not after %s", ErrOutOfOrder,
				rec.Decision.Timestamp.Format(time.RFC3339), last.Format(time.RFC3339))
		}
	}
	h.records = append(h.records, rec)
	if h.limit > 0 && len(h.records) > h.limit {
		drop := len(h.records) - h.limit
		h.records = append(h.records[:0:0], h.records[drop:]...)
	}
	if rec.Outcome == OutcomeAccepted {
		r := rec
		h.lastAccepted = &r
	}
	return nil
}

func (h *History) LastAccepted() (Record, bool) {
	if h == nil || h.lastAccepted == nil {
		return Record{}, false
	}
	return *h.lastAccepted, true
}

func (h *History) Last() (Record, bool) {
	if h == nil || len(h.records) == 0 {
		return Record{}, false
	}
	return h.records[len(h.records)-1], true
}

func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.records)
}

// Records 返回副本。
func (h *History) Records() []Record {
	if h == nil {
		return nil
	}
	out := make([]Record, len(h.records))
	copy(out, h.records)
	return out
}
