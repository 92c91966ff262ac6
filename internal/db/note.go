package db

import "gorm.io/gorm"

// Note 定义了写作/笔记模型，内容为 Markdown
type Note struct {
	gorm.Model
	Title   string
	Slug    string `gorm:"uniqueIndex"`
	Content string
}

// NoteLink 记录笔记间的 wiki 链接，用于反向链接查询
// TargetSlug 可以指向尚不存在的笔记（悬挂链接），创建后自动接上。
type NoteLink struct {
	gorm.Model
	SourceNoteID uint   `gorm:"index;index:idx_note_link_unique,unique"`
	TargetSlug   string `gorm:"index;index:idx_note_link_unique,unique"`
}

// TableName 重写确保唯一索引作用到 source_note_id + target_slug
func (NoteLink) TableName() string {
	return "note_links"
}
