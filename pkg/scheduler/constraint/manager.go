package constraint

import (
	"sync"
)

// Manager 约束管理器，按注册顺序评估并在第一个失败处短路
type Manager struct {
	constraints []Constraint
	mu          sync.RWMutex
	onReject    func(Reason)
}

// NewManager 创建约束管理器
func NewManager(constraints ...Constraint) *Manager {
	m := &Manager{}
	for _, c := range constraints {
		m.Register(c)
	}
	return m
}

// Register 注册约束；同原因的约束被替换，保持原位置
func (m *Manager) Register(c Constraint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.constraints {
		if existing.Reason() == c.Reason() {
			m.constraints[i] = c
			return
		}
	}
	m.constraints = append(m.constraints, c)
}

// OnReject 设置拒绝回调（指标统计）
func (m *Manager) OnReject(fn func(Reason)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReject = fn
}

// Check 依次评估全部约束，拒绝时触发回调
func (m *Manager) Check(ctx *Context, c *Candidate) Verdict {
	v := m.Evaluate(ctx, c)
	if !v.Eligible {
		m.mu.RLock()
		onReject := m.onReject
		m.mu.RUnlock()
		if onReject != nil {
			onReject(v.Reason)
		}
	}
	return v
}

// Evaluate 依次评估全部约束，不触发回调（用于搜索过程中的试探）
func (m *Manager) Evaluate(ctx *Context, c *Candidate) Verdict {
	m.mu.RLock()
	constraints := m.constraints
	m.mu.RUnlock()

	for _, con := range constraints {
		if !con.Allows(ctx, c) {
			return Rejected(con.Reason())
		}
	}
	return Eligible()
}

// CheckOnly 只评估指定原因对应的约束
func (m *Manager) CheckOnly(ctx *Context, c *Candidate, reason Reason) Verdict {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, con := range m.constraints {
		if con.Reason() == reason && !con.Allows(ctx, c) {
			return Rejected(reason)
		}
	}
	return Eligible()
}

// Reasons 按评估顺序返回已注册约束
func (m *Manager) Reasons() []Reason {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Reason, 0, len(m.constraints))
	for _, c := range m.constraints {
		out = append(out, c.Reason())
	}
	return out
}
