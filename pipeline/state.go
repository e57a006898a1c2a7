package pipeline

import (
	"fmt"
	"time"
)

// State 任务生命周期状态
type State string

const (
	StateQueued     State = "queued"     // 等待并发闸门
	StateAdmitted   State = "admitted"   // 已获得执行槽位
	StateBuilding   State = "building"   // 构建请求
	StateGenerating State = "generating" // 调用生成服务
	StateUpscaling  State = "upscaling"  // 调用超分服务
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// String 实现 fmt.Stringer
func (s State) String() string { return string(s) }

// Terminal 是否为终态
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// validTransitions 定义合法的状态转换
var validTransitions = map[State][]State{
	StateQueued:     {StateAdmitted, StateFailed},
	StateAdmitted:   {StateBuilding, StateFailed},
	StateBuilding:   {StateGenerating, StateFailed},
	StateGenerating: {StateUpscaling, StateCompleted, StateFailed},
	StateUpscaling:  {StateCompleted, StateFailed},
}

// CanTransition 检查状态转换是否合法
func CanTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ErrInvalidTransition 非法状态转换错误
type ErrInvalidTransition struct {
	From State
	To   State
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}

// Transition 一次状态变更，交给 OnTransition 钩子
type Transition struct {
	JobID string
	From  State
	To    State
	At    time.Time
}
