package errors

import "errors"

// ErrBusy 员工状态锁在限定时间内未获取到：同一员工的并发请求被串行化，
// 超时方直接失败，由客户端自行重发
var ErrBusy = errors.New("当前请求繁忙，请稍后重试")
