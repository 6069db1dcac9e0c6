package queue

// 主题命名规范：pv.<域>.<动作>，保持稳定且向后兼容.
const (
	TopicRecordCreated     = "pv.record.created"      // 记录已创建（含初始附件）
	TopicRecordUpdated     = "pv.record.updated"      // 记录字段已更新或追加了附件
	TopicRecordDeleted     = "pv.record.deleted"      // 记录被永久删除
	TopicRecordFileDeleted = "pv.record.file_deleted" // 单个附件被删除
	TopicRecordFlagged     = "pv.record.flagged"      // 上架或回收站标记变化
	TopicRecordPurged      = "pv.record.purged"       // 回收站过期记录被定时清理
)

// RecordTopics 记录相关主题集合，列表缓存订阅全部主题.
var RecordTopics = []string{
	TopicRecordCreated,
	TopicRecordUpdated,
	TopicRecordDeleted,
	TopicRecordFileDeleted,
	TopicRecordFlagged,
	TopicRecordPurged,
}
