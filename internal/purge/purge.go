package purge

import "time"

// RetentionDays 是软删除实体进入永久删除前的保留天数。
// 该常量守护不可逆的数据清除，修改前先改测试。
const RetentionDays = 60

// IsPurgeable 判断软删除实体是否可以被硬删除。
// 仅当删除时刻距 now 已满 60 天（含恰好 60 天）时成立。
// 只允许对确实软删除过的实体调用；已完成但未删除的实体
// 永不进入此判定，由数据层只扫描 deleted_at 非空的行来保证。
func IsPurgeable(deletedAt, now time.Time) bool {
	return now.Sub(deletedAt) >= RetentionDays*24*time.Hour
}

// Cutoff 返回当前可清除窗口的截止时刻：
// 删除时刻不晚于该时刻的实体均可清除。
func Cutoff(now time.Time) time.Time {
	return now.Add(-RetentionDays * 24 * time.Hour)
}
