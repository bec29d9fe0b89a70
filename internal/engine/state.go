package engine

// State 是单轮 tick 的状态。
type State string

const (
	StateIdle       State = "Idle"
	StateCollecting State = "Collecting"
	StateDeciding   State = "Deciding"
	StateGating     State = "Gating"
	StateExecuting  State = "Executing"
	StateSettled    State = "Settled"
	StateErrored    State = "Errored"
)
