package jobs

import "time"

// 任务名称常量，便于统一管理与引用.
const (
	JobTrashAutoPurge = "trash.auto_purge"
	JobStorageHealth  = "storage.health"
)

// CronStorageHealth 存储探测周期. 回收站清理周期来自 trash.cron.
const CronStorageHealth = "*/5 * * * *"

const healthProbeTimeout = 5 * time.Second
