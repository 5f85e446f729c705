// 包 errs：边界门、地图数据上下文与报告控制器共用的错误哨兵
// 约束：调用方以 errors.Is 判断；包装时使用 %w
package errs

import "errors"

var (
	// ErrDataNotReady：地理图层仍在加载
	ErrDataNotReady = errors.New("map data is still loading")
	// ErrOutOfBounds：坐标位于上报省界之外，唯一的硬性拒绝
	ErrOutOfBounds = errors.New("point is outside the reporting boundary")
	// ErrNotPrivileged：状态修改需要特权模式
	ErrNotPrivileged = errors.New("operation requires privileged mode")
	// ErrNoMatchingReport：核实坐标附近没有报告
	ErrNoMatchingReport = errors.New("no report at this location")
	// ErrUnknownReport：本地不存在该报告 id
	ErrUnknownReport = errors.New("unknown report id")
	// ErrInvalidStatus：状态不在四种取值之内
	ErrInvalidStatus = errors.New("invalid report status")
	// ErrInvalidDraft：草稿未经过边界门与分类
	ErrInvalidDraft = errors.New("draft was not created through the boundary gate")
	// ErrPendingReport：报告尚待远端确认，id 仍是本地临时值
	ErrPendingReport = errors.New("report is still awaiting confirmation")
)
