package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ── 错误类别 ──
//
// 各业务模块的哨兵错误通过 New 绑定到一个类别，
// 调用方既可以 errors.Is(err, 具体错误) 也可以 errors.Is(err, 类别)。

var (
	ErrInvalidTransition = errors.New("状态流转非法")
	ErrValidation        = errors.New("参数校验失败")
	ErrNotFound          = errors.New("资源不存在")
	ErrConflict          = errors.New("数据冲突")
	ErrPermission        = errors.New("无权限执行该操作")
	ErrBlocked           = errors.New("前置条件未满足")
)

// Error 带类别的业务错误
type Error struct {
	kind error
	msg  string
}

// New 创建绑定类别的业务错误
func New(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// Unwrap 返回错误类别，使 errors.Is(err, ErrConflict) 成立
func (e *Error) Unwrap() error { return e.kind }

// Kind 返回错误类别
func (e *Error) Kind() error { return e.kind }

// Detailed 业务错误附带动态说明（如缺失的轮转名称）
type Detailed struct {
	base   error
	detail string
}

// WithDetail 为业务错误附加说明，errors.Is 仍可匹配原错误及其类别
func WithDetail(base error, detail string) error {
	return &Detailed{base: base, detail: detail}
}

func (d *Detailed) Error() string {
	if d.detail == "" {
		return d.base.Error()
	}
	return d.base.Error() + ": " + d.detail
}

func (d *Detailed) Unwrap() error { return d.base }

// Detail 返回附加说明
func (d *Detailed) Detail() string { return d.detail }

// KindOf 返回错误所属类别，未分类时返回 nil
// 乐观锁冲突归入 ErrConflict
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range []error{
		ErrInvalidTransition, ErrValidation, ErrNotFound,
		ErrConflict, ErrPermission, ErrBlocked,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	if errors.Is(err, ErrOptimisticLock) {
		return ErrConflict
	}
	return nil
}

// DetailOf 提取错误链上的附加说明
func DetailOf(err error) string {
	var d *Detailed
	if errors.As(err, &d) {
		return d.detail
	}
	return ""
}
